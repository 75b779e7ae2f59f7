package call

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

const (
	defaultConnectTimeout    = 15 * time.Second
	defaultIdleTimeout       = 20 * time.Second
	defaultIdlePollInterval  = 5 * time.Second
	defaultEjectionCooldown  = 3 * time.Second
	defaultCompletionTimeout = 2 * time.Minute
	teardownTimeout          = 5 * time.Second
)

// Deps are the collaborators a Controller drives. UI may be nil.
type Deps struct {
	Transport Transport
	Mic       Microphone
	Persister Persister
	Feedback  FeedbackGenerator
	UI        UI
}

type Option func(*Controller)

// WithTimeouts overrides the connect bound, the idle bound and the idle poll
// interval. Non-positive values keep the defaults.
func WithTimeouts(connect, idle, pollInterval time.Duration) Option {
	return func(c *Controller) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if idle > 0 {
			c.idleTimeout = idle
		}
		if pollInterval > 0 {
			c.pollInterval = pollInterval
		}
	}
}

// WithClosingPhrases replaces the phrases that end a generation call once the
// specification is complete.
func WithClosingPhrases(phrases []string) Option {
	return func(c *Controller) {
		if len(phrases) > 0 {
			c.closing = newPhraseSet(phrases)
		}
	}
}

// WithEjectionPhrases replaces the phrases that mark a remote hang-up.
func WithEjectionPhrases(phrases []string) Option {
	return func(c *Controller) {
		if len(phrases) > 0 {
			c.ejection = newPhraseSet(phrases)
		}
	}
}

// WithEjectionCooldown sets how long repeated ejection signals are ignored.
func WithEjectionCooldown(d time.Duration) Option {
	return func(c *Controller) { c.ejectionCooldown = d }
}

// WithAssistantScript sets the agent script sent when an interview starts.
func WithAssistantScript(script string) Option {
	return func(c *Controller) { c.script = script }
}

// WithWorkflowID sets the agent workflow used for generation calls.
func WithWorkflowID(id string) Option {
	return func(c *Controller) { c.workflowID = id }
}

// WithDefaultAmount sets the question count saved when none was captured.
func WithDefaultAmount(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.defaultAmount = n
		}
	}
}

// WithCompletionTimeout bounds the save or feedback call made after a session.
func WithCompletionTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.completionTimeout = d
		}
	}
}

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// latches guard the one-shot actions of a session. Each goes false to true
// at most once and is cleared only when a session starts.
type latches struct {
	ejected       bool
	autoStopArmed bool
	autoStopFired bool
	completed     bool
	// suppressEnd absorbs the transport's end signal after the Controller
	// has already decided how the session ends.
	suppressEnd bool
}

// Controller runs the call-session state machine for one mode. All state
// lives behind mu; transport, microphone and collaborator calls are made
// with mu released.
type Controller struct {
	mode      interview.Mode
	transport Transport
	mic       Microphone
	persister Persister
	feedback  FeedbackGenerator
	ui        UI

	clock             Clock
	logger            *slog.Logger
	connectTimeout    time.Duration
	idleTimeout       time.Duration
	pollInterval      time.Duration
	ejectionCooldown  time.Duration
	completionTimeout time.Duration
	closing           phraseSet
	ejection          phraseSet
	script            string
	workflowID        string
	defaultAmount     int

	watchdog    *Watchdog
	unsubscribe func()
	dispatches  sync.WaitGroup

	mu             sync.Mutex
	status         Status
	epoch          uint64
	callID         string
	req            StartRequest
	log            transcript.Log
	spec           interview.Spec
	stream         MicStream
	connectTimer   Timer
	generating     bool
	userSpoke      bool
	lastUserSpeech time.Time
	lastEjection   time.Time
	latches        latches
}

func NewController(mode interview.Mode, deps Deps, opts ...Option) *Controller {
	c := &Controller{
		mode:              mode,
		transport:         deps.Transport,
		mic:               deps.Mic,
		persister:         deps.Persister,
		feedback:          deps.Feedback,
		ui:                deps.UI,
		clock:             realClock{},
		logger:            slog.Default(),
		connectTimeout:    defaultConnectTimeout,
		idleTimeout:       defaultIdleTimeout,
		pollInterval:      defaultIdlePollInterval,
		ejectionCooldown:  defaultEjectionCooldown,
		completionTimeout: defaultCompletionTimeout,
		closing:           newPhraseSet(DefaultClosingPhrases),
		ejection:          newPhraseSet(DefaultEjectionPhrases),
		defaultAmount:     5,
		status:            StatusInactive,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ui == nil {
		c.ui = noopUI{}
	}
	c.logger = c.logger.With("mode", string(mode))

	c.watchdog = NewWatchdog(c.clock, c.pollInterval, c.idleTimeout)

	if c.transport != nil {
		c.unsubscribe = c.transport.Subscribe(c.HandleEvent)
	}
	return c
}

func (c *Controller) Mode() interview.Mode {
	return c.mode
}

// Busy reports whether Start would return ErrBusy.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusConnecting || c.status == StatusActive || c.generating
}

// Start begins a new session. It returns ErrBusy while another session is
// connecting, active, or still completing.
func (c *Controller) Start(ctx context.Context, req StartRequest) error {
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusActive || c.generating {
		c.mu.Unlock()
		return ErrBusy
	}

	c.epoch++
	epoch := c.epoch
	c.callID = uuid.NewString()
	c.req = req
	c.log.Reset()
	c.spec = interview.Spec{}
	c.latches = latches{}
	c.userSpoke = false
	c.lastUserSpeech = time.Time{}
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	stream, err := c.mic.Acquire(ctx)

	var after pending
	c.mu.Lock()
	if epoch != c.epoch || c.status != StatusConnecting {
		// Stopped or timed out while the microphone was being acquired.
		c.mu.Unlock()
		if err == nil {
			c.release(stream)
		}
		return nil
	}
	if err != nil {
		c.ui.Notify(micNotice(err))
		c.setStatusLocked(StatusInactive)
		c.mu.Unlock()
		return err
	}
	c.stream = stream
	go c.watchMic(epoch, stream)
	c.connectTimer = c.clock.AfterFunc(c.connectTimeout, func() { c.onConnectTimeout(epoch) })
	cfg := BuildStartConfig(c.mode, req, c.script, c.workflowID)
	c.mu.Unlock()

	if err := c.transport.Start(ctx, cfg); err != nil {
		c.mu.Lock()
		if epoch == c.epoch && c.status == StatusConnecting {
			if c.ejection.Match(err.Error()) {
				c.handleEjectionLocked(err.Error(), &after)
			} else {
				c.logger.Warn("transport start failed", "call_id", c.callID, "error", err)
				c.ui.Notify(noticeStartFailed)
				c.latches.suppressEnd = true
				c.teardownLocked(&after, false)
			}
		}
		c.mu.Unlock()
		after.run()
		return err
	}
	return nil
}

// Stop is the user's hang-up. A connecting session is abandoned; an active
// one is finished and its completion dispatched.
func (c *Controller) Stop() {
	var after pending
	c.mu.Lock()
	switch c.status {
	case StatusConnecting:
		c.latches.suppressEnd = true
		c.teardownLocked(&after, true)
	case StatusActive:
		c.latches.suppressEnd = true
		c.finishLocked(&after)
		after.do(c.stopTransport)
	}
	c.mu.Unlock()
	after.run()
}

// HandleEvent applies one transport event. Events must be delivered in
// arrival order.
func (c *Controller) HandleEvent(ev Event) {
	var after pending
	c.mu.Lock()
	switch e := ev.(type) {
	case SessionStarted:
		c.onSessionStartedLocked()
	case SessionEnded:
		c.onSessionEndedLocked(e, &after)
	case Utterance:
		c.onUtteranceLocked(e, &after)
	case SessionError:
		c.onSessionErrorLocked(e, &after)
	case FunctionInvocation:
		c.captureLocked(e.Args)
	case FunctionResult:
		c.captureLocked(e.Result)
	case Message:
		c.captureLocked(e.Payload)
	case AudioActivity:
		c.logger.Debug("audio activity", "speaker", e.Speaker, "speaking", e.Speaking)
	}
	c.mu.Unlock()
	after.run()
}

// ReportUncaught receives errors that surfaced outside the event stream,
// such as a failing transport read loop. Only ejection signals act on the
// session; everything else is logged.
func (c *Controller) ReportUncaught(err error) {
	if err == nil {
		return
	}
	var after pending
	c.mu.Lock()
	if c.ejection.Match(err.Error()) {
		c.handleEjectionLocked(err.Error(), &after)
	} else {
		c.logger.Warn("uncaught call error", "call_id", c.callID, "error", err)
	}
	c.mu.Unlock()
	after.run()
}

// Close detaches from the transport, stops timers, and waits for an
// in-flight completion to finish.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}

	var after pending
	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusActive {
		c.latches.suppressEnd = true
		c.teardownLocked(&after, true)
	}
	c.mu.Unlock()
	after.run()

	c.dispatches.Wait()
}

// Wait blocks until any dispatched completion action has returned.
func (c *Controller) Wait() {
	c.dispatches.Wait()
}

func (c *Controller) onSessionStartedLocked() {
	if c.status != StatusConnecting {
		c.logger.Info("ignoring session start", "call_id", c.callID, "status", c.status)
		return
	}
	c.stopConnectTimerLocked()
	c.latches = latches{}
	c.lastUserSpeech = c.clock.Now()
	c.setStatusLocked(StatusActive)
	epoch := c.epoch
	c.watchdog.OnIdle(func() { c.onIdle(epoch) })
	c.watchdog.Start()
}

func (c *Controller) onSessionEndedLocked(e SessionEnded, after *pending) {
	if c.status != StatusConnecting && c.status != StatusActive {
		return
	}

	if c.latches.suppressEnd {
		if c.mode == interview.ModeGenerate && c.latches.autoStopFired {
			c.finishLocked(after)
			return
		}
		c.teardownLocked(after, false)
		return
	}

	if e.Reason != "" && c.ejection.Match(e.Reason) {
		c.handleEjectionLocked(e.Reason, after)
		return
	}

	if c.status == StatusActive {
		c.finishLocked(after)
		return
	}

	c.logger.Warn("session ended while connecting", "call_id", c.callID, "reason", e.Reason)
	c.ui.Notify(noticeTransportError)
	c.teardownLocked(after, false)
}

func (c *Controller) onUtteranceLocked(u Utterance, after *pending) {
	if !u.Final || c.status != StatusActive {
		return
	}
	text := strings.TrimSpace(u.Text)
	if text == "" {
		return
	}

	entry := transcript.Entry{Role: u.Speaker, Text: text, Timestamp: c.clock.Now()}
	c.log.Append(entry)
	c.ui.BroadcastTranscript(entry)

	if u.Speaker != transcript.RoleUser {
		return
	}
	c.lastUserSpeech = entry.Timestamp
	c.userSpoke = true
	c.watchdog.OnSpeech()

	if c.latches.autoStopArmed && !c.latches.autoStopFired && c.closing.Match(text) {
		c.latches.autoStopFired = true
		c.latches.suppressEnd = true
		c.logger.Info("auto-stop on closing phrase", "call_id", c.callID)
		c.finishLocked(after)
		after.do(c.stopTransport)
		return
	}
	c.maybeArmAutoStopLocked()
}

func (c *Controller) onSessionErrorLocked(e SessionError, after *pending) {
	text := e.Text()
	if c.ejection.Match(text) {
		c.handleEjectionLocked(text, after)
		return
	}

	switch c.status {
	case StatusConnecting:
		c.logger.Warn("transport error while connecting", "call_id", c.callID, "error", text)
		c.ui.Notify(noticeTransportError)
		c.latches.suppressEnd = true
		c.teardownLocked(after, true)
	case StatusActive:
		c.logger.Warn("transport error", "call_id", c.callID, "error", text)
		c.ui.Notify(noticeTransportError)
		c.latches.suppressEnd = true
		c.finishLocked(after)
		after.do(c.stopTransport)
	}
}

func (c *Controller) captureLocked(v any) {
	if c.status != StatusActive {
		return
	}
	candidate, ok := interview.Extract(v)
	if !ok {
		return
	}
	c.spec = interview.Merge(c.spec, candidate)
	c.logger.Debug("captured specification", "call_id", c.callID, "role", c.spec.Role, "questions", c.spec.QuestionCount())
	c.maybeArmAutoStopLocked()
}

func (c *Controller) maybeArmAutoStopLocked() {
	if c.mode != interview.ModeGenerate || c.status != StatusActive {
		return
	}
	if c.latches.autoStopArmed || !c.userSpoke || !c.spec.Complete(c.mode) {
		return
	}
	c.latches.autoStopArmed = true
	c.logger.Info("auto-stop armed", "call_id", c.callID)
}

func (c *Controller) handleEjectionLocked(reason string, after *pending) {
	if c.status != StatusConnecting && c.status != StatusActive {
		return
	}
	if c.latches.ejected {
		return
	}
	now := c.clock.Now()
	if !c.lastEjection.IsZero() && now.Sub(c.lastEjection) < c.ejectionCooldown {
		c.logger.Info("ignoring repeated ejection", "call_id", c.callID, "reason", reason)
		return
	}

	c.latches.ejected = true
	c.latches.suppressEnd = true
	c.lastEjection = now
	c.logger.Info("call ejected", "call_id", c.callID, "reason", reason)
	c.ui.Notify(noticeEjected)

	if c.mode == interview.ModeGenerate && c.status == StatusActive {
		c.finishLocked(after)
		after.do(c.stopTransport)
		return
	}
	c.teardownLocked(after, true)
}

func (c *Controller) onConnectTimeout(epoch uint64) {
	var after pending
	c.mu.Lock()
	if epoch == c.epoch && c.status == StatusConnecting {
		c.connectTimer = nil
		c.logger.Warn("connect timeout", "call_id", c.callID, "timeout", c.connectTimeout)
		c.latches.suppressEnd = true
		c.ui.Notify(noticeConnectTimeout)
		c.teardownLocked(&after, true)
	}
	c.mu.Unlock()
	after.run()
}

// onIdle may run after the session it was armed for has ended, so it only
// acts when epoch is still current.
func (c *Controller) onIdle(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || c.status != StatusActive {
		return
	}
	c.logger.Info("no user speech", "call_id", c.callID, "since", c.lastUserSpeech)
	c.ui.Notify(noticeIdle)
}

func (c *Controller) watchMic(epoch uint64, stream MicStream) {
	<-stream.Done()
	if err := stream.Err(); err != nil {
		c.onMicFailure(epoch, err)
	}
}

// onMicFailure aborts the session whose microphone stopped delivering audio.
func (c *Controller) onMicFailure(epoch uint64, err error) {
	var after pending
	c.mu.Lock()
	if epoch == c.epoch && (c.status == StatusConnecting || c.status == StatusActive) {
		c.logger.Warn("microphone failed", "call_id", c.callID, "error", err)
		c.ui.Notify(micNotice(err))
		c.latches.suppressEnd = true
		c.teardownLocked(&after, true)
	}
	c.mu.Unlock()
	after.run()
}

// teardownLocked abandons the session without a completion action.
func (c *Controller) teardownLocked(after *pending, stopTransport bool) {
	c.stopConnectTimerLocked()
	c.watchdog.Stop()
	c.releaseMicLocked(after)
	c.setStatusLocked(StatusInactive)
	if stopTransport {
		after.do(c.stopTransport)
	}
}

// finishLocked moves to Finished and dispatches the mode's completion action
// exactly once per session.
func (c *Controller) finishLocked(after *pending) {
	if c.latches.completed {
		return
	}
	c.latches.completed = true
	c.stopConnectTimerLocked()
	c.watchdog.Stop()
	c.releaseMicLocked(after)
	c.setStatusLocked(StatusFinished)

	if c.mode == interview.ModeGenerate {
		if !c.spec.Complete(c.mode) {
			c.logger.Info("specification incomplete", "call_id", c.callID)
			c.ui.Notify(noticeIncomplete)
			c.setStatusLocked(StatusInactive)
			return
		}
		req := SaveRequest{
			UserID:   c.req.UserID,
			UserName: c.req.UserName,
			Spec:     c.spec.WithDefaults(c.mode, c.defaultAmount),
		}
		c.setGeneratingLocked(true)
		c.dispatch(func(ctx context.Context) { c.save(ctx, req) })
		return
	}

	req := FeedbackRequest{
		InterviewID: c.req.InterviewID,
		UserID:      c.req.UserID,
		FeedbackID:  c.req.FeedbackID,
		Transcript:  c.log.Entries(),
	}
	c.setGeneratingLocked(true)
	c.dispatch(func(ctx context.Context) { c.generateFeedback(ctx, req) })
}

func (c *Controller) dispatch(fn func(ctx context.Context)) {
	c.dispatches.Add(1)
	go func() {
		defer c.dispatches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.completionTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (c *Controller) save(ctx context.Context, req SaveRequest) {
	res, err := c.persister.SaveInterview(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setGeneratingLocked(false)

	if err != nil || !res.Success {
		c.logger.Error("save interview failed", "call_id", c.callID, "error", err, "server_error", res.Error)
		c.ui.Notify(saveFailedNotice(res.Error))
		c.ui.Navigate("/")
		return
	}
	c.logger.Info("interview saved", "call_id", c.callID, "interview_id", res.InterviewID)
	c.ui.Notify(noticeSaved)
	c.ui.Navigate("/interview/" + res.InterviewID)
}

func (c *Controller) generateFeedback(ctx context.Context, req FeedbackRequest) {
	res, err := c.feedback.GenerateFeedback(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setGeneratingLocked(false)

	if err != nil || !res.Success {
		c.logger.Error("generate feedback failed", "call_id", c.callID, "interview_id", req.InterviewID, "error", err, "server_error", res.Error)
		c.ui.Notify(feedbackFailedNotice(res.Error))
		c.ui.Navigate("/")
		return
	}
	c.logger.Info("feedback generated", "call_id", c.callID, "feedback_id", res.FeedbackID)
	c.ui.Notify(noticeFeedbackReady)
	c.ui.Navigate("/interview/" + req.InterviewID + "/feedback")
}

func (c *Controller) setStatusLocked(to Status) {
	if c.status == to {
		return
	}
	c.logger.Info("call status", "call_id", c.callID, "from", c.status, "to", to)
	c.status = to
	c.ui.BroadcastStatus(to)
}

func (c *Controller) setGeneratingLocked(generating bool) {
	c.generating = generating
	c.ui.BroadcastGenerating(generating)
}

func (c *Controller) stopConnectTimerLocked() {
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
}

func (c *Controller) releaseMicLocked(after *pending) {
	if c.stream == nil {
		return
	}
	stream := c.stream
	c.stream = nil
	after.do(func() { c.release(stream) })
}

func (c *Controller) release(stream MicStream) {
	if err := stream.Release(); err != nil {
		c.logger.Warn("release microphone", "error", err)
	}
}

func (c *Controller) stopTransport() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := c.transport.Stop(ctx); err != nil {
		c.logger.Warn("stop transport", "error", err)
	}
}

// pending collects side effects that must run after mu is released.
type pending []func()

func (p *pending) do(f func()) {
	*p = append(*p, f)
}

func (p pending) run() {
	for _, f := range p {
		f()
	}
}
