package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mockvoice/mockvoice/internal/audio"
	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/config"
	"github.com/mockvoice/mockvoice/internal/feedback"
	"github.com/mockvoice/mockvoice/internal/gdrive"
	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/interviews"
	"github.com/mockvoice/mockvoice/internal/llm"
	"github.com/mockvoice/mockvoice/internal/server"
	"github.com/mockvoice/mockvoice/internal/storage"
	"github.com/mockvoice/mockvoice/internal/transport"
)

func main() {
	log.Println("mockvoice: starting")

	cfg, warnings, err := config.Load(envOrDefault(config.EnvPrefix+"CONFIG", "config.yaml"))
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persisterOpts := []interviews.Option{}
	if client, err := newLLMClient(&cfg, cfg.QuestionModel); err != nil {
		log.Printf("warning: question generation disabled: %v", err)
	} else {
		persisterOpts = append(persisterOpts, interviews.WithQuestionClient(client))
	}
	if cfg.GDriveFolderID != "" {
		exporter, err := gdrive.NewExporter(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			log.Printf("warning: gdrive export disabled: %v", err)
		} else {
			persisterOpts = append(persisterOpts, interviews.WithExporter(exporter))
		}
	}
	persister := interviews.New(store, persisterOpts...)

	feedbackClient, err := newLLMClient(&cfg, cfg.FeedbackModel)
	if err != nil {
		log.Printf("warning: feedback generation disabled: %v", err)
		feedbackClient = nil
	}
	generator := feedback.New(store, feedbackClient, feedback.WithArchive(storage.NewWriter(cfg.TranscriptDir)))

	hub := server.NewHub()
	agent := transport.NewClient(transport.Config{URL: cfg.AgentURL, APIKey: cfg.AgentAPIKey}, slog.Default())

	audio.Init()
	defer audio.Terminate()

	micOpts := []audio.MicrophoneOption{audio.WithSampleRates(cfg.SampleRateCandidates())}
	if cfg.RecordingDir != "" {
		micOpts = append(micOpts, audio.WithRecorder(audio.NewRecorder(cfg.RecordingDir)))
	}
	mic := audio.NewMicrophone(agent, micOpts...)

	deps := call.Deps{
		Transport: agent,
		Mic:       mic,
		Persister: persister,
		Feedback:  generator,
		UI:        hub,
	}
	callOpts := []call.Option{
		call.WithTimeouts(cfg.ParsedConnectTimeout(), cfg.ParsedIdleTimeout(), cfg.ParsedIdlePollInterval()),
		call.WithEjectionCooldown(cfg.ParsedEjectionCooldown()),
		call.WithClosingPhrases(cfg.ClosingPhrases),
		call.WithEjectionPhrases(cfg.EjectionPhrases),
		call.WithAssistantScript(cfg.AssistantScript),
		call.WithWorkflowID(cfg.WorkflowID),
		call.WithDefaultAmount(cfg.DefaultAmount),
	}
	board := call.NewSwitchboard(
		call.NewController(interview.ModeGenerate, deps, callOpts...),
		call.NewController(interview.ModeInterview, deps, callOpts...),
	)
	agent.OnUncaught(board.ReportUncaught)

	handler := server.Handler(hub, store, server.CallControls{
		Start:    board.Start,
		Stop:     board.Stop,
		Current:  board.Current,
		Warnings: func() []string { return warnings },
	})

	log.Printf("mockvoice: api on http://%s", cfg.ListenAddr)
	if err := server.Serve(ctx, cfg.ListenAddr, handler); err != nil {
		log.Printf("http server error: %v", err)
	}

	log.Println("mockvoice: shutting down")
	board.Close()
}

// newLLMClient builds a client for a provider/model string. It returns a nil
// client with an error when the provider has no API key.
func newLLMClient(cfg *config.Config, model string) (llm.Client, error) {
	provider, name, err := llm.ParseModel(model)
	if err != nil {
		return nil, err
	}
	key := cfg.APIKey(provider)
	if key == "" {
		return nil, fmt.Errorf("no API key for provider %s", provider)
	}
	return llm.NewClient(provider, key, name, llm.WithJSONOutput())
}

func envOrDefault(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
