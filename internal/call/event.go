package call

import "github.com/mockvoice/mockvoice/internal/transcript"

// Event is a session event emitted by a Transport. Each value is consumed
// once by the Controller.
type Event interface {
	eventName() string
}

// SessionStarted signals the remote side accepted the call.
type SessionStarted struct{}

// SessionEnded signals the call is over. Reason carries whatever text the
// transport had about why.
type SessionEnded struct {
	Reason string
}

// Utterance is a transcript line. Only final utterances enter the log.
type Utterance struct {
	Speaker transcript.Role
	Text    string
	Final   bool
}

// SessionError reports a transport-level failure.
type SessionError struct {
	Message string
	Err     error
}

// FunctionInvocation is the agent calling a function; Args is the raw,
// loosely typed argument payload.
type FunctionInvocation struct {
	Name string
	Args any
}

// FunctionResult carries the output of a function call.
type FunctionResult struct {
	Name   string
	Result any
}

// AudioActivity marks speech start/stop for a speaker.
type AudioActivity struct {
	Speaker  transcript.Role
	Speaking bool
}

// Message is any other transport message, passed through untouched.
type Message struct {
	Type    string
	Payload any
}

func (SessionStarted) eventName() string     { return "session-started" }
func (SessionEnded) eventName() string       { return "session-ended" }
func (Utterance) eventName() string          { return "utterance" }
func (SessionError) eventName() string       { return "error" }
func (FunctionInvocation) eventName() string { return "function-invocation" }
func (FunctionResult) eventName() string     { return "function-result" }
func (AudioActivity) eventName() string      { return "audio-activity" }
func (Message) eventName() string            { return "message" }

// EventName returns a stable name for logging.
func EventName(e Event) string {
	if e == nil {
		return ""
	}
	return e.eventName()
}

// Text returns the error description, preferring Message.
func (e SessionError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}
