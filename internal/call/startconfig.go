package call

import (
	"strings"

	"github.com/mockvoice/mockvoice/internal/interview"
)

// DefaultInterviewerScript is the agent script for interview mode. The
// {{questions}} placeholder is replaced with the formatted question list.
const DefaultInterviewerScript = `You are a professional job interviewer conducting a real-time voice interview with a candidate.
Your goal is to assess their qualifications, motivation, and fit for the role.

Follow this structured question flow:
{{questions}}

Listen actively and acknowledge each answer before moving on. Ask brief follow-up questions when a response is vague.
Keep your replies short and conversational, as you would in a real voice interview.
When the questions are done, thank the candidate and end the conversation politely.`

var defaultQuestionLines = []string{
	"- Tell me about yourself and your recent experience.",
	"- Why are you interested in this role?",
}

// StartRequest is what the user supplies when starting a call.
type StartRequest struct {
	UserName    string   `json:"user_name"`
	UserID      string   `json:"user_id"`
	InterviewID string   `json:"interview_id,omitempty"`
	FeedbackID  string   `json:"feedback_id,omitempty"`
	Questions   []string `json:"questions,omitempty"`
}

// StartConfig is the mode-specific transport start payload.
type StartConfig struct {
	Mode       interview.Mode    `json:"mode"`
	Script     string            `json:"script,omitempty"`
	WorkflowID string            `json:"workflowId,omitempty"`
	Variables  map[string]string `json:"variableValues,omitempty"`
}

// FormatQuestions renders questions as dash-prefixed lines, falling back to
// two generic questions when none are given.
func FormatQuestions(questions []string) string {
	lines := make([]string, 0, len(questions))
	for _, q := range questions {
		if q = strings.TrimSpace(q); q != "" {
			lines = append(lines, "- "+q)
		}
	}
	if len(lines) == 0 {
		lines = defaultQuestionLines
	}
	return strings.Join(lines, "\n")
}

func BuildStartConfig(mode interview.Mode, req StartRequest, script, workflowID string) StartConfig {
	if mode == interview.ModeGenerate {
		return StartConfig{
			Mode:       mode,
			WorkflowID: workflowID,
			Variables: map[string]string{
				"username": req.UserName,
				"userid":   req.UserID,
			},
		}
	}

	if script == "" {
		script = DefaultInterviewerScript
	}
	questions := FormatQuestions(req.Questions)
	return StartConfig{
		Mode:      mode,
		Script:    strings.ReplaceAll(script, "{{questions}}", questions),
		Variables: map[string]string{"questions": questions},
	}
}
