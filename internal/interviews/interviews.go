package interviews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/llm"
	"github.com/mockvoice/mockvoice/internal/storage"
)

const questionPrompt = `Prepare questions for a job interview.
The job role is {{role}}.
The job experience level is {{level}}.
The tech stack used in the job is: {{techstack}}.
The focus between behavioural and technical questions should lean towards: {{type}}.
The amount of questions required is: {{amount}}.
Please return only the questions, without any additional text.
The questions are going to be read by a voice assistant so do not use "/" or "*" or any other special characters which might break the voice assistant.
Return a JSON object like this: {"questions": ["Question 1", "Question 2", "Question 3"]}`

type Store interface {
	CreateInterview(iv storage.Interview) error
}

type Exporter interface {
	ExportInterview(ctx context.Context, id string, data []byte) error
}

// Service saves interview specifications captured during generation calls.
type Service struct {
	store    Store
	client   llm.Client
	exporter Exporter
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

// WithQuestionClient lets the service write the question list when a
// specification only carries a count.
func WithQuestionClient(c llm.Client) Option {
	return func(s *Service) { s.client = c }
}

func WithExporter(e Exporter) Option {
	return func(s *Service) { s.exporter = e }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveInterview validates and stores a specification. Problems with the
// request come back as an unsuccessful result carrying the user-facing text.
func (s *Service) SaveInterview(ctx context.Context, req call.SaveRequest) (call.SaveResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return call.SaveResult{Error: "A signed-in user is required to save an interview."}, nil
	}
	spec := req.Spec.Clone()
	if err := spec.Validate(interview.ModeGenerate); err != nil {
		return call.SaveResult{Error: "Role, tech stack and number of questions are required."}, nil
	}

	if len(spec.Questions) == 0 && s.client != nil {
		questions, err := s.generateQuestions(ctx, spec)
		if err != nil {
			return call.SaveResult{Error: "Could not generate interview questions. Please try again."}, err
		}
		spec.Questions = questions
	}
	if spec.Amount <= 0 {
		spec.Amount = len(spec.Questions)
	}

	iv := storage.Interview{
		ID:        s.newID(),
		UserID:    req.UserID,
		Spec:      spec,
		Finalized: true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateInterview(iv); err != nil {
		return call.SaveResult{Error: "Could not save the interview. Please try again."}, fmt.Errorf("store interview: %w", err)
	}
	s.logger.Info("interview saved", "interview_id", iv.ID, "user_id", iv.UserID, "role", spec.Role, "questions", len(spec.Questions))

	s.export(ctx, iv)
	return call.SaveResult{Success: true, InterviewID: iv.ID}, nil
}

func (s *Service) export(ctx context.Context, iv storage.Interview) {
	if s.exporter == nil {
		return
	}
	data, err := json.MarshalIndent(iv, "", "  ")
	if err != nil {
		s.logger.Warn("encode interview for export failed", "interview_id", iv.ID, "error", err)
		return
	}
	if err := s.exporter.ExportInterview(ctx, iv.ID, data); err != nil {
		s.logger.Warn("export interview failed", "interview_id", iv.ID, "error", err)
	}
}

func (s *Service) generateQuestions(ctx context.Context, spec interview.Spec) ([]string, error) {
	replacer := strings.NewReplacer(
		"{{role}}", spec.Role,
		"{{level}}", orUnspecified(spec.Level),
		"{{techstack}}", strings.Join(spec.TechStack, ", "),
		"{{type}}", orUnspecified(spec.Type),
		"{{amount}}", strconv.Itoa(spec.Amount),
	)

	raw, err := s.client.Complete(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: replacer.Replace(questionPrompt)},
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions, err := decodeQuestions(llm.ExtractJSON(raw))
	if err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	out := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("generate questions: empty list")
	}
	if spec.Amount > 0 && len(out) > spec.Amount {
		out = out[:spec.Amount]
	}
	return out, nil
}

// decodeQuestions accepts a bare array or an object with a questions array.
func decodeQuestions(raw string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Questions, nil
}

func orUnspecified(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not specified"
	}
	return v
}
