package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who spoke a line.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Entry struct {
	Role      Role      `json:"role"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is an append-only, ordered transcript. The zero value is ready to use.
type Log struct {
	entries []Entry
}

func (l *Log) Append(e Entry) {
	e.Text = strings.TrimSpace(e.Text)
	if e.Text == "" {
		return
	}
	l.entries = append(l.entries, e)
}

func (l *Log) Reset() {
	l.entries = nil
}

func (l *Log) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the log.
func (l *Log) Entries() []Entry {
	return append([]Entry(nil), l.entries...)
}

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (e Entry) FormatMarkdown() string {
	ts := e.Timestamp.Format("15:04:05")
	return fmt.Sprintf("**[%s] %s:** %s", ts, speakerLabel(e.Role), strings.TrimSpace(e.Text))
}

// Format renders entries as "- role: text" lines, the shape the feedback
// prompt expects.
func Format(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		text := strings.TrimSpace(e.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", e.Role, text)
	}
	return b.String()
}

func speakerLabel(r Role) string {
	switch r {
	case RoleUser:
		return "Candidate"
	case RoleAssistant:
		return "Interviewer"
	default:
		return string(r)
	}
}
