package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all MockVoice environment variables.
const EnvPrefix = "MOCKVOICE_"

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string   `yaml:"listen_addr"`
	DBPath                string   `yaml:"db_path"`
	TranscriptDir         string   `yaml:"transcript_dir"`
	RecordingDir          string   `yaml:"recording_dir"`
	AgentURL              string   `yaml:"agent_url"`
	WorkflowID            string   `yaml:"workflow_id"`
	AssistantScript       string   `yaml:"assistant_script"`
	ConnectTimeout        string   `yaml:"connect_timeout"`
	IdleTimeout           string   `yaml:"idle_timeout"`
	IdlePollInterval      string   `yaml:"idle_poll_interval"`
	EjectionCooldown      string   `yaml:"ejection_cooldown"`
	ClosingPhrases        []string `yaml:"closing_phrases"`
	EjectionPhrases       []string `yaml:"ejection_phrases"`
	DefaultAmount         int      `yaml:"default_amount"`
	FeedbackModel         string   `yaml:"feedback_model"`
	QuestionModel         string   `yaml:"question_model"`
	MicSampleRate         int      `yaml:"mic_sample_rate"`
	MicSampleRates        []int    `yaml:"mic_sample_rates"`
	GDriveFolderID        string   `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string   `yaml:"google_credentials_file"`

	// Secrets, env vars only, never serialized to YAML.
	AgentAPIKey     string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            ":8080",
		DBPath:                "data/mockvoice.db",
		TranscriptDir:         "data/transcripts",
		ConnectTimeout:        "15s",
		IdleTimeout:           "20s",
		IdlePollInterval:      "5s",
		EjectionCooldown:      "3s",
		DefaultAmount:         5,
		FeedbackModel:         "openai/gpt-4o-mini",
		QuestionModel:         "openai/gpt-4o-mini",
		MicSampleRate:         16000,
		MicSampleRates:        []int{48000, 44100},
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

func (c *Config) ParsedConnectTimeout() time.Duration {
	return parseDuration(c.ConnectTimeout, 15*time.Second)
}

func (c *Config) ParsedIdleTimeout() time.Duration {
	return parseDuration(c.IdleTimeout, 20*time.Second)
}

func (c *Config) ParsedIdlePollInterval() time.Duration {
	return parseDuration(c.IdlePollInterval, 5*time.Second)
}

func (c *Config) ParsedEjectionCooldown() time.Duration {
	return parseDuration(c.EjectionCooldown, 3*time.Second)
}

// SampleRateCandidates returns a deduplicated ordered list of sample rates
// to try: preferred rate first, then configured alternatives, then defaults.
func (c *Config) SampleRateCandidates() []int {
	hardcoded := []int{16000, 48000, 44100}

	combined := make([]int, 0, 1+len(c.MicSampleRates)+len(hardcoded))
	combined = append(combined, c.MicSampleRate)
	combined = append(combined, c.MicSampleRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

// APIKey returns the secret for an LLM provider name.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return ""
	}
}

func applyEnvOverrides(cfg *Config) {
	strs := []struct {
		key  string
		dest *string
	}{
		{"LISTEN_ADDR", &cfg.ListenAddr},
		{"DB_PATH", &cfg.DBPath},
		{"TRANSCRIPT_DIR", &cfg.TranscriptDir},
		{"RECORDING_DIR", &cfg.RecordingDir},
		{"AGENT_URL", &cfg.AgentURL},
		{"WORKFLOW_ID", &cfg.WorkflowID},
		{"ASSISTANT_SCRIPT", &cfg.AssistantScript},
		{"CONNECT_TIMEOUT", &cfg.ConnectTimeout},
		{"IDLE_TIMEOUT", &cfg.IdleTimeout},
		{"IDLE_POLL_INTERVAL", &cfg.IdlePollInterval},
		{"EJECTION_COOLDOWN", &cfg.EjectionCooldown},
		{"FEEDBACK_MODEL", &cfg.FeedbackModel},
		{"QUESTION_MODEL", &cfg.QuestionModel},
		{"GDRIVE_FOLDER_ID", &cfg.GDriveFolderID},
		{"GOOGLE_CREDENTIALS_FILE", &cfg.GoogleCredentialsFile},
	}
	for _, s := range strs {
		if v := os.Getenv(EnvPrefix + s.key); v != "" {
			*s.dest = v
		}
	}

	if v := os.Getenv(EnvPrefix + "CLOSING_PHRASES"); v != "" {
		cfg.ClosingPhrases = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "EJECTION_PHRASES"); v != "" {
		cfg.EjectionPhrases = parseList(v)
	}
	if v := os.Getenv(EnvPrefix + "DEFAULT_AMOUNT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.DefaultAmount = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.MicSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "MIC_SAMPLE_RATES"); v != "" {
		cfg.MicSampleRates = parseSampleRates(v)
	}
}

func loadSecrets(cfg *Config) {
	cfg.AgentAPIKey = os.Getenv(EnvPrefix + "AGENT_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.AgentURL == "" {
		warnings = append(warnings, "Voice agent URL not configured, calls cannot start. Set agent_url or "+EnvPrefix+"AGENT_URL.")
	}
	if cfg.WorkflowID == "" {
		warnings = append(warnings, "Workflow id not configured, generation calls will start without one. Set workflow_id or "+EnvPrefix+"WORKFLOW_ID.")
	}

	for _, m := range []struct{ key, value string }{
		{"feedback_model", cfg.FeedbackModel},
		{"question_model", cfg.QuestionModel},
	} {
		provider, ok := modelProvider(m.value)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, expected provider/model.", m.key, m.value))
			continue
		}
		if cfg.APIKey(provider) == "" {
			warnings = append(warnings, fmt.Sprintf("%s API key not configured, %s is disabled. Set %s%s_API_KEY.",
				provider, m.key, EnvPrefix, strings.ToUpper(provider)))
		}
	}

	for _, d := range []struct{ key, value, fallback string }{
		{"connect_timeout", cfg.ConnectTimeout, "15s"},
		{"idle_timeout", cfg.IdleTimeout, "20s"},
		{"idle_poll_interval", cfg.IdlePollInterval, "5s"},
		{"ejection_cooldown", cfg.EjectionCooldown, "3s"},
	} {
		if parsed, err := time.ParseDuration(d.value); err != nil || parsed <= 0 {
			warnings = append(warnings, fmt.Sprintf("Invalid %s %q, using default %s.", d.key, d.value, d.fallback))
		}
	}

	if cfg.DefaultAmount <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid default_amount %d, using 5.", cfg.DefaultAmount))
		cfg.DefaultAmount = 5
	}

	return warnings
}

func modelProvider(model string) (string, bool) {
	provider, name, ok := strings.Cut(model, "/")
	if !ok || provider == "" || name == "" {
		return "", false
	}
	return provider, true
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
