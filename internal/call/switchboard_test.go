package call

import (
	"context"
	"errors"
	"testing"

	"github.com/mockvoice/mockvoice/internal/interview"
)

type switchboardHarness struct {
	board     *Switchboard
	generate  *Controller
	interview *Controller
	transport *fakeTransport
	mic       *fakeMic
	feedback  *fakeFeedback
}

func newSwitchboardHarness(t *testing.T) *switchboardHarness {
	t.Helper()
	h := &switchboardHarness{
		transport: newFakeTransport(),
		mic:       &fakeMic{},
		feedback:  &fakeFeedback{result: FeedbackResult{Success: true, FeedbackID: "fb-1"}},
	}
	clock := newFakeClock()
	deps := Deps{
		Transport: h.transport,
		Mic:       h.mic,
		Persister: &fakePersister{result: SaveResult{Success: true, InterviewID: "int-1"}},
		Feedback:  h.feedback,
		UI:        &recordingUI{},
	}
	h.generate = NewController(interview.ModeGenerate, deps, WithClock(clock))
	h.interview = NewController(interview.ModeInterview, deps, WithClock(clock))
	h.board = NewSwitchboard(h.generate, h.interview)
	t.Cleanup(h.board.Close)
	return h
}

func TestSwitchboardRoutesByMode(t *testing.T) {
	h := newSwitchboardHarness(t)

	if _, ok := h.board.Current(); ok {
		t.Fatal("expected no current call before start")
	}

	if err := h.board.Start(context.Background(), interview.ModeInterview, StartRequest{UserID: "u-1", InterviewID: "int-9"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.transport.emit(SessionStarted{})

	snap, ok := h.board.Current()
	if !ok || snap.Mode != interview.ModeInterview || snap.Status != StatusActive {
		t.Fatalf("unexpected current snapshot: %+v ok=%v", snap, ok)
	}
	if got := h.generate.Snapshot().Status; got != StatusInactive {
		t.Fatalf("generate controller should stay inactive, got %s", got)
	}
}

func TestSwitchboardRejectsSecondCallAcrossModes(t *testing.T) {
	h := newSwitchboardHarness(t)

	if err := h.board.Start(context.Background(), interview.ModeGenerate, StartRequest{UserID: "u-1"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	err := h.board.Start(context.Background(), interview.ModeInterview, StartRequest{UserID: "u-1"})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if len(h.mic.streams) != 1 {
		t.Fatalf("expected a single microphone acquisition, got %d", len(h.mic.streams))
	}
}

func TestSwitchboardUnknownMode(t *testing.T) {
	h := newSwitchboardHarness(t)
	err := h.board.Start(context.Background(), interview.Mode("chat"), StartRequest{})
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestSwitchboardStopFinishesActiveCall(t *testing.T) {
	h := newSwitchboardHarness(t)

	if err := h.board.Start(context.Background(), interview.ModeInterview, StartRequest{UserID: "u-1", InterviewID: "int-9"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.transport.emit(SessionStarted{}, userSays("I have five years of Go experience."))

	h.board.Stop()
	h.board.Wait()

	if got := len(h.feedback.requests()); got != 1 {
		t.Fatalf("expected one feedback request, got %d", got)
	}
	if got := h.mic.last().releaseCount(); got != 1 {
		t.Fatalf("expected microphone released once, got %d", got)
	}
	if err := h.board.Start(context.Background(), interview.ModeGenerate, StartRequest{UserID: "u-1"}); err != nil {
		t.Fatalf("expected a new call to start after completion, got %v", err)
	}
}
