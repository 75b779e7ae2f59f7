package call

import "errors"

// Status is the call's position in its lifecycle.
type Status string

const (
	StatusInactive   Status = "inactive"
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusFinished   Status = "finished"
)

type NoticeLevel string

const (
	LevelInfo    NoticeLevel = "info"
	LevelSuccess NoticeLevel = "success"
	LevelWarning NoticeLevel = "warning"
	LevelError   NoticeLevel = "error"
)

// Notice is a toast-style message for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

const (
	CodeMicPermission   = "mic_permission"
	CodeNoAudioTrack    = "no_audio_track"
	CodeMicMuted        = "mic_muted"
	CodeMicUnavailable  = "mic_unavailable"
	CodeConnectTimeout  = "connect_timeout"
	CodeTransportError  = "transport_error"
	CodeEjected         = "ejected"
	CodeIdle            = "idle"
	CodeIncomplete      = "incomplete_spec"
	CodeSaved           = "saved"
	CodeSaveFailed      = "save_failed"
	CodeFeedbackFailed  = "feedback_failed"
	CodeFeedbackCreated = "feedback_created"
)

func micNotice(err error) Notice {
	switch {
	case errors.Is(err, ErrMicPermission):
		return Notice{Level: LevelError, Code: CodeMicPermission, Message: "Microphone access was denied. Allow microphone access and try again."}
	case errors.Is(err, ErrNoAudioTrack):
		return Notice{Level: LevelError, Code: CodeNoAudioTrack, Message: "No microphone was found. Connect a microphone and try again."}
	case errors.Is(err, ErrMicMuted):
		return Notice{Level: LevelError, Code: CodeMicMuted, Message: "Your microphone is muted or disabled. Unmute it and try again."}
	default:
		return Notice{Level: LevelError, Code: CodeMicUnavailable, Message: "Could not access your microphone. Check your audio settings and try again."}
	}
}

var (
	noticeConnectTimeout = Notice{Level: LevelError, Code: CodeConnectTimeout, Message: "Connection timed out. Please check your network and try again."}
	noticeTransportError = Notice{Level: LevelError, Code: CodeTransportError, Message: "The call ran into a problem and was ended."}
	noticeStartFailed    = Notice{Level: LevelError, Code: CodeTransportError, Message: "Could not start the call. Please try again."}
	noticeEjected        = Notice{Level: LevelInfo, Code: CodeEjected, Message: "The interviewer ended the call."}
	noticeIdle           = Notice{Level: LevelWarning, Code: CodeIdle, Message: "We can't hear you. Check that your microphone is on and unmuted."}
	noticeIncomplete     = Notice{Level: LevelError, Code: CodeIncomplete, Message: "Interview details were not captured correctly. Please try again and mention the role, tech stack, and number of questions."}
	noticeSaved          = Notice{Level: LevelSuccess, Code: CodeSaved, Message: "Interview generated successfully."}
	noticeFeedbackReady  = Notice{Level: LevelSuccess, Code: CodeFeedbackCreated, Message: "Your feedback is ready."}
)

func saveFailedNotice(serverText string) Notice {
	if serverText == "" {
		serverText = "Failed to save the interview. Please try again."
	}
	return Notice{Level: LevelError, Code: CodeSaveFailed, Message: serverText}
}

func feedbackFailedNotice(serverText string) Notice {
	if serverText == "" {
		serverText = "Could not generate feedback for this interview."
	}
	return Notice{Level: LevelError, Code: CodeFeedbackFailed, Message: serverText}
}
