package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

// Interview is a saved interview specification.
type Interview struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	interview.Spec
	Finalized bool      `json:"finalized"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Feedback is the assessment of one interview attempt.
type Feedback struct {
	ID                  string             `json:"id"`
	InterviewID         string             `json:"interview_id"`
	UserID              string             `json:"user_id"`
	TotalScore          int                `json:"total_score"`
	CategoryScores      []CategoryScore    `json:"category_scores"`
	Strengths           []string           `json:"strengths"`
	AreasForImprovement []string           `json:"areas_for_improvement"`
	FinalAssessment     string             `json:"final_assessment"`
	Transcript          []transcript.Entry `json:"transcript,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "mockvoice.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{name: "interviews", ddl: `
			CREATE TABLE IF NOT EXISTS interviews (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				role TEXT NOT NULL,
				level TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL DEFAULT '',
				techstack TEXT NOT NULL DEFAULT '[]',
				amount INTEGER NOT NULL DEFAULT 0,
				questions TEXT NOT NULL DEFAULT '[]',
				finalized INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL
			);`},
		{name: "feedback", ddl: `
			CREATE TABLE IF NOT EXISTS feedback (
				id TEXT PRIMARY KEY,
				interview_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				total_score INTEGER NOT NULL DEFAULT 0,
				category_scores TEXT NOT NULL DEFAULT '[]',
				strengths TEXT NOT NULL DEFAULT '[]',
				areas_for_improvement TEXT NOT NULL DEFAULT '[]',
				final_assessment TEXT NOT NULL DEFAULT '',
				transcript TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);`},
		{name: "feedback_requests", ddl: `
			CREATE TABLE IF NOT EXISTS feedback_requests (
				interview_id TEXT NOT NULL,
				transcript_hash TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
				UNIQUE(interview_id, transcript_hash)
			);`},
	}
	for _, table := range tables {
		if _, err := s.db.Exec(table.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_interviews_user ON interviews(user_id, created_at)"); err != nil {
		return fmt.Errorf("create interviews index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_feedback_interview ON feedback(interview_id, user_id, updated_at)"); err != nil {
		return fmt.Errorf("create feedback index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateInterview(iv Interview) error {
	if strings.TrimSpace(iv.ID) == "" {
		return errors.New("interview id is required")
	}
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = s.now()
	}

	_, err := s.db.Exec(
		`INSERT INTO interviews(id, user_id, role, level, type, techstack, amount, questions, finalized, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iv.ID,
		iv.UserID,
		iv.Role,
		iv.Level,
		iv.Type,
		encodeJSON(iv.TechStack),
		iv.Amount,
		encodeJSON(iv.Questions),
		iv.Finalized,
		formatTime(iv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create interview %s: %w", iv.ID, err)
	}
	return nil
}

const interviewColumns = `id, user_id, role, level, type, techstack, amount, questions, finalized, created_at`

func (s *SQLiteStore) GetInterview(id string) (Interview, error) {
	row := s.db.QueryRow(`SELECT `+interviewColumns+` FROM interviews WHERE id = ?`, id)
	iv, err := scanInterview(row)
	if err != nil {
		return Interview{}, fmt.Errorf("query interview %s: %w", id, err)
	}
	return iv, nil
}

// ListInterviews returns a user's interviews, newest first.
func (s *SQLiteStore) ListInterviews(userID string, limit int) ([]Interview, error) {
	rows, err := s.db.Query(
		`SELECT `+interviewColumns+` FROM interviews WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query interviews for user %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	return scanInterviews(rows)
}

// ListLatestInterviews returns finalized interviews created by other users,
// newest first.
func (s *SQLiteStore) ListLatestInterviews(excludeUserID string, limit int) ([]Interview, error) {
	rows, err := s.db.Query(
		`SELECT `+interviewColumns+` FROM interviews
		 WHERE finalized = 1 AND user_id != ?
		 ORDER BY created_at DESC LIMIT ?`,
		excludeUserID,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("query latest interviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanInterviews(rows)
}

// UpsertFeedback inserts f, or overwrites the row with the same id while
// keeping its original creation time.
func (s *SQLiteStore) UpsertFeedback(f Feedback) error {
	if strings.TrimSpace(f.ID) == "" {
		return errors.New("feedback id is required")
	}
	now := s.now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}

	_, err := s.db.Exec(
		`INSERT INTO feedback(id, interview_id, user_id, total_score, category_scores, strengths,
			areas_for_improvement, final_assessment, transcript, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			interview_id = excluded.interview_id,
			user_id = excluded.user_id,
			total_score = excluded.total_score,
			category_scores = excluded.category_scores,
			strengths = excluded.strengths,
			areas_for_improvement = excluded.areas_for_improvement,
			final_assessment = excluded.final_assessment,
			transcript = excluded.transcript,
			updated_at = excluded.updated_at`,
		f.ID,
		f.InterviewID,
		f.UserID,
		f.TotalScore,
		encodeJSON(f.CategoryScores),
		encodeJSON(f.Strengths),
		encodeJSON(f.AreasForImprovement),
		f.FinalAssessment,
		encodeJSON(f.Transcript),
		formatTime(f.CreatedAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("upsert feedback %s: %w", f.ID, err)
	}
	return nil
}

const feedbackColumns = `id, interview_id, user_id, total_score, category_scores, strengths,
	areas_for_improvement, final_assessment, transcript, created_at, updated_at`

func (s *SQLiteStore) GetFeedback(id string) (Feedback, error) {
	row := s.db.QueryRow(`SELECT `+feedbackColumns+` FROM feedback WHERE id = ?`, id)
	f, err := scanFeedback(row)
	if err != nil {
		return Feedback{}, fmt.Errorf("query feedback %s: %w", id, err)
	}
	return f, nil
}

// GetFeedbackByInterview returns the most recently updated feedback for an
// interview, optionally restricted to one user.
func (s *SQLiteStore) GetFeedbackByInterview(interviewID, userID string) (Feedback, error) {
	row := s.db.QueryRow(
		`SELECT `+feedbackColumns+` FROM feedback
		 WHERE interview_id = ? AND (? = '' OR user_id = ?)
		 ORDER BY updated_at DESC LIMIT 1`,
		interviewID,
		userID,
		userID,
	)
	f, err := scanFeedback(row)
	if err != nil {
		return Feedback{}, fmt.Errorf("query feedback for interview %s: %w", interviewID, err)
	}
	return f, nil
}

// ClaimFeedbackRequest records that feedback for this exact transcript is
// being generated. It returns false when the claim already exists.
func (s *SQLiteStore) ClaimFeedbackRequest(interviewID, transcriptHash string) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO feedback_requests(interview_id, transcript_hash) VALUES(?, ?)`,
		interviewID,
		transcriptHash,
	)
	if err != nil {
		return false, fmt.Errorf("claim feedback request for interview %s: %w", interviewID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim feedback rows affected: %w", err)
	}

	return rows > 0, nil
}

// ReleaseFeedbackRequest drops a claim so a failed generation can be retried.
func (s *SQLiteStore) ReleaseFeedbackRequest(interviewID, transcriptHash string) error {
	_, err := s.db.Exec(
		`DELETE FROM feedback_requests WHERE interview_id = ? AND transcript_hash = ?`,
		interviewID,
		transcriptHash,
	)
	if err != nil {
		return fmt.Errorf("release feedback request for interview %s: %w", interviewID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInterview(row scanner) (Interview, error) {
	var (
		iv                   Interview
		techstack, questions string
		createdAt            string
	)
	if err := row.Scan(&iv.ID, &iv.UserID, &iv.Role, &iv.Level, &iv.Type, &techstack, &iv.Amount, &questions, &iv.Finalized, &createdAt); err != nil {
		return Interview{}, err
	}
	if err := decodeJSON(techstack, &iv.TechStack); err != nil {
		return Interview{}, fmt.Errorf("decode techstack: %w", err)
	}
	if err := decodeJSON(questions, &iv.Questions); err != nil {
		return Interview{}, fmt.Errorf("decode questions: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Interview{}, fmt.Errorf("parse created_at: %w", err)
	}
	iv.CreatedAt = parsed
	return iv, nil
}

func scanInterviews(rows *sql.Rows) ([]Interview, error) {
	interviews := make([]Interview, 0, 16)
	for rows.Next() {
		iv, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		interviews = append(interviews, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interview rows: %w", err)
	}
	return interviews, nil
}

func scanFeedback(row scanner) (Feedback, error) {
	var (
		f                                           Feedback
		categories, strengths, areas, transcriptRaw string
		createdAt, updatedAt                        string
	)
	if err := row.Scan(&f.ID, &f.InterviewID, &f.UserID, &f.TotalScore, &categories, &strengths,
		&areas, &f.FinalAssessment, &transcriptRaw, &createdAt, &updatedAt); err != nil {
		return Feedback{}, err
	}

	for _, field := range []struct {
		raw  string
		dest any
	}{
		{raw: categories, dest: &f.CategoryScores},
		{raw: strengths, dest: &f.Strengths},
		{raw: areas, dest: &f.AreasForImprovement},
		{raw: transcriptRaw, dest: &f.Transcript},
	} {
		if err := decodeJSON(field.raw, field.dest); err != nil {
			return Feedback{}, fmt.Errorf("decode feedback %s: %w", f.ID, err)
		}
	}

	var err error
	if f.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Feedback{}, fmt.Errorf("parse created_at: %w", err)
	}
	if f.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return Feedback{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return f, nil
}

func encodeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return "[]"
	}
	return string(data)
}

func decodeJSON(raw string, dest any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
