package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/deepgram/deepgram-go-sdk/v3/pkg/audio/microphone"

	"github.com/mockvoice/mockvoice/internal/call"
)

// DefaultSampleRates are tried in order until the input device accepts one.
var DefaultSampleRates = []int{16000, 48000, 44100}

// Init and Terminate bracket all microphone use in the process.
func Init()      { microphone.Initialize() }
func Terminate() { microphone.Teardown() }

type device interface {
	Start() error
	Stop() error
	Stream(w io.Writer) error
}

type opener func(sampleRate int) (device, error)

func openDeepgram(sampleRate int) (device, error) {
	return microphone.New(microphone.AudioConfig{InputChannels: 1, SamplingRate: float32(sampleRate)})
}

// Microphone hands out the single capture stream a call owns and pipes its
// PCM16 audio into sink.
type Microphone struct {
	sink     io.Writer
	rates    []int
	recorder *Recorder
	logger   *slog.Logger
	open     opener
	wait     func(time.Duration)

	mu     sync.Mutex
	active *Stream
}

type MicrophoneOption func(*Microphone)

func WithSampleRates(rates []int) MicrophoneOption {
	return func(m *Microphone) {
		if len(rates) > 0 {
			m.rates = dedupeRates(rates)
		}
	}
}

// WithRecorder keeps a WAV copy of every call's audio.
func WithRecorder(r *Recorder) MicrophoneOption {
	return func(m *Microphone) { m.recorder = r }
}

func WithLogger(logger *slog.Logger) MicrophoneOption {
	return func(m *Microphone) { m.logger = logger }
}

func NewMicrophone(sink io.Writer, opts ...MicrophoneOption) *Microphone {
	m := &Microphone{
		sink:   sink,
		rates:  DefaultSampleRates,
		logger: slog.Default(),
		open:   openDeepgram,
		wait:   time.Sleep,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "microphone")
	return m
}

// Acquire opens the input device at the first sample rate it accepts and
// starts streaming. Errors wrap one of the call.ErrMic* sentinels.
func (m *Microphone) Acquire(ctx context.Context) (call.MicStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, fmt.Errorf("%w: already in use by another call", call.ErrMicUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		dev     device
		rate    int
		lastErr error
	)
	for _, candidate := range m.rates {
		d, err := m.open(candidate)
		if err != nil {
			m.logger.Warn("microphone open failed", "sample_rate", candidate, "error", err)
			lastErr = err
			continue
		}
		dev, rate = d, candidate
		break
	}
	if dev == nil {
		if lastErr == nil {
			lastErr = errors.New("no sample rates configured")
		}
		return nil, classify(lastErr)
	}

	if err := dev.Start(); err != nil {
		_ = dev.Stop()
		return nil, classify(err)
	}

	sink := m.sink
	if m.recorder != nil {
		if err := m.recorder.Begin(rate); err != nil {
			m.logger.Warn("recording disabled for this call", "error", err)
		} else {
			sink = m.recorder.Writer(sink)
		}
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &Stream{mic: m, dev: dev, rate: rate, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		if err := streamWithRetry(streamCtx, dev, sink, m.wait, m.logger); err != nil {
			s.failure = classify(err)
		}
	}()

	m.active = s
	m.logger.Info("microphone started", "sample_rate", rate)
	return s, nil
}

// Stream is one call's capture. Release stops the device and is safe to
// call more than once.
type Stream struct {
	mic     *Microphone
	dev     device
	rate    int
	cancel  context.CancelFunc
	done    chan struct{}
	failure error
	once    sync.Once
	err     error
}

func (s *Stream) SampleRate() int {
	return s.rate
}

// Done is closed once capture has stopped, after Release or a device failure.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err reports why capture stopped on its own. It is nil until Done is closed
// and stays nil when the stream was released.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.failure
	default:
		return nil
	}
}

func (s *Stream) Release() error {
	s.once.Do(func() {
		s.cancel()
		if err := s.dev.Stop(); err != nil {
			s.err = fmt.Errorf("stop microphone: %w", err)
		}

		m := s.mic
		m.mu.Lock()
		if m.active == s {
			m.active = nil
		}
		recorder := m.recorder
		m.mu.Unlock()

		if recorder != nil {
			path, err := recorder.End()
			if err != nil {
				m.logger.Warn("finish recording", "error", err)
			} else if path != "" {
				m.logger.Info("call audio saved", "path", path)
			}
		}
	})
	return s.err
}

// classify maps device errors onto the call package's microphone errors.
func classify(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission"), strings.Contains(msg, "not permitted"), strings.Contains(msg, "denied"):
		return fmt.Errorf("%w: %v", call.ErrMicPermission, err)
	case strings.Contains(msg, "no default input"), strings.Contains(msg, "invalid device"), strings.Contains(msg, "device unavailable"), strings.Contains(msg, "no device"):
		return fmt.Errorf("%w: %v", call.ErrNoAudioTrack, err)
	case strings.Contains(msg, "muted"), strings.Contains(msg, "disabled"):
		return fmt.Errorf("%w: %v", call.ErrMicMuted, err)
	default:
		return fmt.Errorf("%w: %v", call.ErrMicUnavailable, err)
	}
}

func dedupeRates(rates []int) []int {
	seen := make(map[int]struct{}, len(rates))
	out := make([]int, 0, len(rates))
	for _, rate := range rates {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		out = append(out, rate)
	}
	return out
}
