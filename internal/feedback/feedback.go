package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/llm"
	"github.com/mockvoice/mockvoice/internal/storage"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

// Categories are scored in this order.
var Categories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem Solving",
	"Cultural & Role Fit",
	"Confidence & Clarity",
}

const systemPrompt = "You are a professional interviewer analyzing a mock interview. " +
	"Your task is to evaluate the candidate based on structured categories. " +
	"Be thorough and detailed in your analysis. Don't be lenient with the candidate. " +
	"If there are mistakes or areas for improvement, point them out."

const userTemplate = `Analyze this mock interview transcript. Score the candidate from 0 to 100 in each of these categories only:
{{categories}}
Transcript:
{{transcript}}
Return a JSON object with the keys totalScore, categoryScores (array of {name, score, comment}), strengths (array of strings), areasForImprovement (array of strings) and finalAssessment (string).`

type Store interface {
	ClaimFeedbackRequest(interviewID, transcriptHash string) (bool, error)
	ReleaseFeedbackRequest(interviewID, transcriptHash string) error
	UpsertFeedback(f storage.Feedback) error
	GetFeedbackByInterview(interviewID, userID string) (storage.Feedback, error)
}

type Archive interface {
	WriteTranscript(name string, entries []transcript.Entry) (string, error)
}

type Generator struct {
	store   Store
	client  llm.Client
	archive Archive
	logger  *slog.Logger
	sleep   func(time.Duration)
	newID   func() string
}

type Option func(*Generator)

// WithArchive keeps a markdown copy of every transcript that was scored.
func WithArchive(a Archive) Option {
	return func(g *Generator) { g.archive = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

func New(store Store, client llm.Client, opts ...Option) *Generator {
	g := &Generator{
		store:  store,
		client: client,
		logger: slog.Default(),
		sleep:  time.Sleep,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type result struct {
	TotalScore          int                     `json:"totalScore"`
	CategoryScores      []storage.CategoryScore `json:"categoryScores"`
	Strengths           []string                `json:"strengths"`
	AreasForImprovement []string                `json:"areasForImprovement"`
	FinalAssessment     string                  `json:"finalAssessment"`
}

// GenerateFeedback scores a finished interview transcript. Request problems
// come back as an unsuccessful result with a message for the user; a non-nil
// error means the generation itself failed.
func (g *Generator) GenerateFeedback(ctx context.Context, req call.FeedbackRequest) (call.FeedbackResult, error) {
	if strings.TrimSpace(req.InterviewID) == "" {
		return call.FeedbackResult{Error: "Interview id is required to generate feedback."}, nil
	}
	rendered := transcript.Format(req.Transcript)
	if rendered == "" {
		return call.FeedbackResult{Error: "The interview transcript is empty."}, nil
	}
	if g.client == nil {
		return call.FeedbackResult{Error: "Feedback generation is not configured."}, nil
	}

	hash := transcriptHash(rendered)
	claimed, err := g.store.ClaimFeedbackRequest(req.InterviewID, hash)
	if err != nil {
		return call.FeedbackResult{}, fmt.Errorf("claim feedback request: %w", err)
	}
	if !claimed {
		existing, err := g.store.GetFeedbackByInterview(req.InterviewID, req.UserID)
		if err != nil {
			return call.FeedbackResult{Error: "Feedback for this interview is already being generated."}, nil
		}
		g.logger.Info("feedback already generated for transcript", "interview_id", req.InterviewID, "feedback_id", existing.ID)
		return call.FeedbackResult{Success: true, FeedbackID: existing.ID}, nil
	}

	res, err := g.complete(ctx, rendered)
	if err != nil {
		if releaseErr := g.store.ReleaseFeedbackRequest(req.InterviewID, hash); releaseErr != nil {
			g.logger.Warn("release feedback claim failed", "interview_id", req.InterviewID, "error", releaseErr)
		}
		return call.FeedbackResult{}, err
	}

	id := req.FeedbackID
	if id == "" {
		id = g.newID()
	}
	fb := storage.Feedback{
		ID:                  id,
		InterviewID:         req.InterviewID,
		UserID:              req.UserID,
		TotalScore:          clampScore(res.TotalScore),
		CategoryScores:      normalizeCategories(res.CategoryScores),
		Strengths:           res.Strengths,
		AreasForImprovement: res.AreasForImprovement,
		FinalAssessment:     strings.TrimSpace(res.FinalAssessment),
		Transcript:          req.Transcript,
	}
	if err := g.store.UpsertFeedback(fb); err != nil {
		if releaseErr := g.store.ReleaseFeedbackRequest(req.InterviewID, hash); releaseErr != nil {
			g.logger.Warn("release feedback claim failed", "interview_id", req.InterviewID, "error", releaseErr)
		}
		return call.FeedbackResult{}, fmt.Errorf("store feedback: %w", err)
	}

	if g.archive != nil {
		if path, err := g.archive.WriteTranscript(id, req.Transcript); err != nil {
			g.logger.Warn("archive transcript failed", "feedback_id", id, "error", err)
		} else {
			g.logger.Debug("transcript archived", "feedback_id", id, "path", path)
		}
	}

	g.logger.Info("feedback stored", "interview_id", req.InterviewID, "feedback_id", id, "total_score", fb.TotalScore)
	return call.FeedbackResult{Success: true, FeedbackID: id}, nil
}

func (g *Generator) complete(ctx context.Context, rendered string) (result, error) {
	userContent := strings.ReplaceAll(userTemplate, "{{categories}}", "- "+strings.Join(Categories, "\n- "))
	userContent = strings.ReplaceAll(userContent, "{{transcript}}", rendered)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userContent},
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := range backoff {
		raw, err := g.client.Complete(ctx, messages)
		if err == nil {
			var res result
			if err = json.Unmarshal([]byte(llm.ExtractJSON(raw)), &res); err == nil {
				return res, nil
			}
			err = fmt.Errorf("decode feedback: %w", err)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < len(backoff)-1 {
			g.sleep(backoff[attempt])
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no attempts made")
	}
	return result{}, fmt.Errorf("generate feedback failed after retries: %w", lastErr)
}

// normalizeCategories keeps the known categories in their canonical order,
// adding any the model left out with a zero score.
func normalizeCategories(in []storage.CategoryScore) []storage.CategoryScore {
	byName := make(map[string]storage.CategoryScore, len(in))
	for _, c := range in {
		byName[strings.ToLower(strings.TrimSpace(c.Name))] = c
	}

	out := make([]storage.CategoryScore, 0, len(Categories))
	for _, name := range Categories {
		c := byName[strings.ToLower(name)]
		out = append(out, storage.CategoryScore{
			Name:    name,
			Score:   clampScore(c.Score),
			Comment: strings.TrimSpace(c.Comment),
		})
	}
	return out
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func transcriptHash(rendered string) string {
	sum := sha256.Sum256([]byte(rendered))
	return hex.EncodeToString(sum[:])
}
