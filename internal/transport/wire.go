package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mockvoice/mockvoice/internal/call"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

// Inbound message types sent by the voice agent.
const (
	typeCallStart          = "call-start"
	typeCallEnd            = "call-end"
	typeHang               = "hang"
	typeTranscript         = "transcript"
	typeFunctionCall       = "function-call"
	typeToolCalls          = "tool-calls"
	typeFunctionCallResult = "function-call-result"
	typeToolCallsResult    = "tool-calls-result"
	typeSpeechUpdate       = "speech-update"
	typeError              = "error"
)

type inboundFrame struct {
	Type           string          `json:"type"`
	EndedReason    string          `json:"endedReason"`
	Role           string          `json:"role"`
	TranscriptType string          `json:"transcriptType"`
	Transcript     string          `json:"transcript"`
	Status         string          `json:"status"`
	Name           string          `json:"name"`
	Result         json.RawMessage `json:"result"`
	Error          json.RawMessage `json:"error"`
	Message        json.RawMessage `json:"message"`
	FunctionCall   *struct {
		Name       string          `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
	} `json:"functionCall"`
	ToolCallList []struct {
		ID       string `json:"id"`
		Function struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"function"`
	} `json:"toolCallList"`
}

type startFrame struct {
	Type string `json:"type"`
	call.StartConfig
}

type stopFrame struct {
	Type string `json:"type"`
}

// Decode turns one JSON text frame into session events. A tool-calls frame
// yields one FunctionInvocation per call; unknown types pass through as a
// Message carrying the rest of the decoded frame.
func Decode(data []byte) ([]call.Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case typeCallStart:
		return []call.Event{call.SessionStarted{}}, nil
	case typeCallEnd, typeHang:
		return []call.Event{call.SessionEnded{Reason: f.EndedReason}}, nil
	case typeTranscript:
		return []call.Event{call.Utterance{
			Speaker: speaker(f.Role),
			Text:    f.Transcript,
			Final:   f.TranscriptType == "final",
		}}, nil
	case typeFunctionCall:
		if f.FunctionCall == nil {
			return []call.Event{call.FunctionInvocation{}}, nil
		}
		return []call.Event{call.FunctionInvocation{
			Name: f.FunctionCall.Name,
			Args: decodeAny(f.FunctionCall.Parameters),
		}}, nil
	case typeToolCalls:
		events := make([]call.Event, 0, len(f.ToolCallList))
		for _, tc := range f.ToolCallList {
			events = append(events, call.FunctionInvocation{
				Name: tc.Function.Name,
				Args: decodeAny(tc.Function.Arguments),
			})
		}
		return events, nil
	case typeFunctionCallResult, typeToolCallsResult:
		return []call.Event{call.FunctionResult{Name: f.Name, Result: decodeAny(f.Result)}}, nil
	case typeSpeechUpdate:
		return []call.Event{call.AudioActivity{
			Speaker:  speaker(f.Role),
			Speaking: f.Status == "started",
		}}, nil
	case typeError:
		return []call.Event{call.SessionError{Message: errorText(f)}}, nil
	default:
		return []call.Event{call.Message{Type: f.Type, Payload: messagePayload(data)}}, nil
	}
}

// messagePayload decodes an unrecognised frame without its "type" key. The
// frame type is agent metadata and lives in Message.Type only.
func messagePayload(data []byte) any {
	payload := decodeAny(data)
	if m, ok := payload.(map[string]any); ok {
		delete(m, "type")
	}
	return payload
}

func speaker(role string) transcript.Role {
	if strings.EqualFold(role, string(transcript.RoleUser)) {
		return transcript.RoleUser
	}
	return transcript.RoleAssistant
}

func decodeAny(raw json.RawMessage) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	return v
}

// errorText reads "error" as a string or as an object with a message, then
// falls back to a top-level "message".
func errorText(f inboundFrame) string {
	for _, raw := range []json.RawMessage{f.Error, f.Message} {
		switch v := decodeAny(raw).(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	return "unknown agent error"
}
