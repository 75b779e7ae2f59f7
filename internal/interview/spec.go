package interview

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects what a call is for.
type Mode string

const (
	// ModeGenerate captures an interview specification from conversation.
	ModeGenerate Mode = "generate"
	// ModeInterview runs a scripted interview and collects a transcript.
	ModeInterview Mode = "interview"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeGenerate:
		return ModeGenerate, nil
	case ModeInterview:
		return ModeInterview, nil
	default:
		return "", fmt.Errorf("unknown mode %q: expected generate or interview", s)
	}
}

// ErrIncomplete is returned when a specification lacks fields required for its mode.
var ErrIncomplete = errors.New("interview specification incomplete")

// DefaultRole is used for the interview flow when no role was captured.
const DefaultRole = "Software Engineer"

// Spec is an interview specification. Zero values mean "absent".
type Spec struct {
	Role      string   `json:"role"`
	Level     string   `json:"level,omitempty"`
	Type      string   `json:"type,omitempty"`
	TechStack []string `json:"techstack,omitempty"`
	Amount    int      `json:"amount,omitempty"`
	Questions []string `json:"questions,omitempty"`
}

// IsZero reports whether no field is populated.
func (s Spec) IsZero() bool {
	return s.Role == "" && s.Level == "" && s.Type == "" &&
		len(s.TechStack) == 0 && s.Amount == 0 && len(s.Questions) == 0
}

// QuestionCount is the explicit list length when present, otherwise Amount.
func (s Spec) QuestionCount() int {
	if len(s.Questions) > 0 {
		return len(s.Questions)
	}
	return s.Amount
}

// Complete reports whether s carries every field mode needs before it can be
// finalized. It looks only at the structure.
func (s Spec) Complete(mode Mode) bool {
	switch mode {
	case ModeGenerate:
		return s.Role != "" && len(s.TechStack) > 0 && s.QuestionCount() > 0
	case ModeInterview:
		return s.QuestionCount() > 0
	default:
		return false
	}
}

// Validate returns ErrIncomplete when Complete(mode) is false.
func (s Spec) Validate(mode Mode) error {
	if !s.Complete(mode) {
		return ErrIncomplete
	}
	return nil
}

// WithDefaults fills absent fields that have a sensible fallback. The role is
// only defaulted outside generation mode, where its absence must block saving.
func (s Spec) WithDefaults(mode Mode, defaultAmount int) Spec {
	out := s.Clone()
	if out.Role == "" && mode != ModeGenerate {
		out.Role = DefaultRole
	}
	if out.Amount <= 0 && len(out.Questions) == 0 && defaultAmount > 0 {
		out.Amount = defaultAmount
	}
	return out
}

// Clone returns a deep copy.
func (s Spec) Clone() Spec {
	out := s
	if s.TechStack != nil {
		out.TechStack = append([]string(nil), s.TechStack...)
	}
	if s.Questions != nil {
		out.Questions = append([]string(nil), s.Questions...)
	}
	return out
}

// Merge layers next over prev. A field of prev survives unless next carries a
// non-empty value for it.
func Merge(prev, next Spec) Spec {
	out := prev.Clone()
	if next.Role != "" {
		out.Role = next.Role
	}
	if next.Level != "" {
		out.Level = next.Level
	}
	if next.Type != "" {
		out.Type = next.Type
	}
	if len(next.TechStack) > 0 {
		out.TechStack = append([]string(nil), next.TechStack...)
	}
	if next.Amount > 0 {
		out.Amount = next.Amount
	}
	if len(next.Questions) > 0 {
		out.Questions = append([]string(nil), next.Questions...)
	}
	return out
}
