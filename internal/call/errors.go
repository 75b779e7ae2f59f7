package call

import "errors"

// ErrBusy is returned by Start while a call is connecting, active, or
// still dispatching its completion.
var ErrBusy = errors.New("call already in progress")

// Microphone failures. Microphone implementations wrap one of these so the
// Controller can tell the user what went wrong.
var (
	ErrMicPermission  = errors.New("microphone permission denied")
	ErrNoAudioTrack   = errors.New("no audio input track")
	ErrMicMuted       = errors.New("microphone muted or disabled")
	ErrMicUnavailable = errors.New("microphone unavailable")
)

// ErrUnknownMode is returned by Switchboard.Start for a mode it has no
// Controller for.
var ErrUnknownMode = errors.New("no controller for call mode")
