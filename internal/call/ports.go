package call

import (
	"context"

	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

type Transport interface {
	Start(ctx context.Context, cfg StartConfig) error
	Stop(ctx context.Context) error
	// Subscribe registers handler for every event, in arrival order. The
	// returned func removes the subscription.
	Subscribe(handler func(Event)) (unsubscribe func())
}

// Microphone hands out the single capture stream a call owns.
type Microphone interface {
	Acquire(ctx context.Context) (MicStream, error)
}

// MicStream is released exactly once, on every exit path. Done is closed
// when capture stops; Err is non-nil when it stopped because the device
// failed rather than because it was released.
type MicStream interface {
	Release() error
	Done() <-chan struct{}
	Err() error
}

type SaveRequest struct {
	UserID   string
	UserName string
	Spec     interview.Spec
}

// SaveResult mirrors the save endpoint response. Error holds the server's
// text on failure.
type SaveResult struct {
	Success     bool
	InterviewID string
	Error       string
}

type Persister interface {
	SaveInterview(ctx context.Context, req SaveRequest) (SaveResult, error)
}

type FeedbackRequest struct {
	InterviewID string
	UserID      string
	// FeedbackID, when set, regenerates that feedback instead of creating one.
	FeedbackID string
	Transcript []transcript.Entry
}

type FeedbackResult struct {
	Success    bool
	FeedbackID string
	Error      string
}

type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResult, error)
}

// UI receives the Controller's outbound signals. Implementations must not
// block and must not call back into the Controller.
type UI interface {
	BroadcastStatus(status Status)
	BroadcastTranscript(entry transcript.Entry)
	BroadcastGenerating(generating bool)
	Notify(n Notice)
	Navigate(path string)
}

type noopUI struct{}

func (noopUI) BroadcastStatus(Status)               {}
func (noopUI) BroadcastTranscript(transcript.Entry) {}
func (noopUI) BroadcastGenerating(bool)             {}
func (noopUI) Notify(Notice)                        {}
func (noopUI) Navigate(string)                      {}
