package call

import (
	"context"
	"fmt"
	"sync"

	"github.com/mockvoice/mockvoice/internal/interview"
)

// Switchboard owns one Controller per mode over a shared transport and
// microphone, and lets at most one of them hold a session at a time.
type Switchboard struct {
	controllers map[interview.Mode]*Controller

	startMu sync.Mutex

	mu      sync.Mutex
	current *Controller
}

func NewSwitchboard(controllers ...*Controller) *Switchboard {
	s := &Switchboard{controllers: make(map[interview.Mode]*Controller, len(controllers))}
	for _, c := range controllers {
		s.controllers[c.Mode()] = c
	}
	return s
}

// Start begins a session in mode. It returns ErrBusy while any Controller
// is connecting, active, or completing.
func (s *Switchboard) Start(ctx context.Context, mode interview.Mode, req StartRequest) error {
	c, ok := s.controllers[mode]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	s.startMu.Lock()
	defer s.startMu.Unlock()

	for _, other := range s.controllers {
		if other.Busy() {
			return ErrBusy
		}
	}

	s.mu.Lock()
	s.current = c
	s.mu.Unlock()

	return c.Start(ctx, req)
}

// Stop hangs up whichever session is in progress.
func (s *Switchboard) Stop() {
	for _, c := range s.controllers {
		c.Stop()
	}
}

// Current returns a snapshot of the most recently started Controller.
func (s *Switchboard) Current() (Snapshot, bool) {
	s.mu.Lock()
	c := s.current
	s.mu.Unlock()

	if c == nil {
		return Snapshot{}, false
	}
	return c.Snapshot(), true
}

// ReportUncaught forwards err to every Controller. Idle ones ignore it.
func (s *Switchboard) ReportUncaught(err error) {
	for _, c := range s.controllers {
		c.ReportUncaught(err)
	}
}

func (s *Switchboard) Close() {
	for _, c := range s.controllers {
		c.Close()
	}
}

func (s *Switchboard) Wait() {
	for _, c := range s.controllers {
		c.Wait()
	}
}
