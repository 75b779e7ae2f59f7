package call

import (
	"context"
	"sync"
	"time"

	"github.com/mockvoice/mockvoice/internal/transcript"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward, firing due timers in order. Callbacks run
// without the clock's lock held so they may schedule new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.fired = true
		c.mu.Unlock()

		next.f()
	}
}

type fakeTransport struct {
	mu       sync.Mutex
	handlers map[int]func(Event)
	nextID   int
	starts   []StartConfig
	stops    int
	startErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[int]func(Event){}}
}

func (f *fakeTransport) Start(_ context.Context, cfg StartConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, cfg)
	return f.startErr
}

func (f *fakeTransport) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeTransport) Subscribe(handler func(Event)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeTransport) emit(events ...Event) {
	for _, ev := range events {
		f.mu.Lock()
		handlers := make([]func(Event), 0, len(f.handlers))
		for _, h := range f.handlers {
			handlers = append(handlers, h)
		}
		f.mu.Unlock()

		for _, h := range handlers {
			h(ev)
		}
	}
}

func (f *fakeTransport) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *fakeTransport) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type fakeMic struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

type fakeStream struct {
	mu       sync.Mutex
	released int
	done     chan struct{}
	failure  error
}

func (m *fakeMic) Acquire(context.Context) (MicStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s := &fakeStream{done: make(chan struct{})}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMic) last() *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.streams) == 0 {
		return nil
	}
	return m.streams[len(m.streams)-1]
}

func (s *fakeStream) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	s.closeLocked()
	return nil
}

func (s *fakeStream) Done() <-chan struct{} {
	return s.done
}

func (s *fakeStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// fail simulates the device dropping out mid-capture.
func (s *fakeStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		s.failure = err
	}
	s.closeLocked()
}

func (s *fakeStream) closeLocked() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *fakeStream) releaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

type fakePersister struct {
	mu     sync.Mutex
	calls  []SaveRequest
	result SaveResult
	err    error
}

func (p *fakePersister) SaveInterview(_ context.Context, req SaveRequest) (SaveResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	return p.result, p.err
}

func (p *fakePersister) requests() []SaveRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SaveRequest(nil), p.calls...)
}

type fakeFeedback struct {
	mu     sync.Mutex
	calls  []FeedbackRequest
	result FeedbackResult
	err    error
}

func (f *fakeFeedback) GenerateFeedback(_ context.Context, req FeedbackRequest) (FeedbackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.result, f.err
}

func (f *fakeFeedback) requests() []FeedbackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FeedbackRequest(nil), f.calls...)
}

type recordingUI struct {
	mu         sync.Mutex
	statuses   []Status
	entries    []transcript.Entry
	generating []bool
	notices    []Notice
	paths      []string
}

func (u *recordingUI) BroadcastStatus(s Status) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statuses = append(u.statuses, s)
}

func (u *recordingUI) BroadcastTranscript(e transcript.Entry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entries = append(u.entries, e)
}

func (u *recordingUI) BroadcastGenerating(g bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.generating = append(u.generating, g)
}

func (u *recordingUI) Notify(n Notice) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notices = append(u.notices, n)
}

func (u *recordingUI) Navigate(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, path)
}

func (u *recordingUI) noticeCodes() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	codes := make([]string, 0, len(u.notices))
	for _, n := range u.notices {
		codes = append(codes, n.Code)
	}
	return codes
}

func (u *recordingUI) countCode(code string) int {
	n := 0
	for _, c := range u.noticeCodes() {
		if c == code {
			n++
		}
	}
	return n
}

func (u *recordingUI) navigations() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

func (u *recordingUI) statusHistory() []Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Status(nil), u.statuses...)
}
