package call

import (
	"sync"
	"time"
)

// Watchdog polls for user speech while a call is active and fires its idle
// callback once when none has been heard for the idle bound.
type Watchdog struct {
	clock    Clock
	interval time.Duration
	idle     time.Duration

	mu         sync.Mutex
	timer      Timer
	running    bool
	generation uint64
	lastSpeech time.Time
	onIdle     func()
}

func NewWatchdog(clock Clock, interval, idle time.Duration) *Watchdog {
	if clock == nil {
		clock = realClock{}
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if idle <= 0 {
		idle = 20 * time.Second
	}
	return &Watchdog{clock: clock, interval: interval, idle: idle}
}

func (w *Watchdog) OnIdle(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onIdle = callback
}

// Start begins polling. The idle bound is measured from now until the first
// OnSpeech call.
func (w *Watchdog) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopLocked()
	w.running = true
	w.lastSpeech = w.clock.Now()
	w.scheduleLocked(w.generation)
}

func (w *Watchdog) OnSpeech() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSpeech = w.clock.Now()
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

func (w *Watchdog) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watchdog) stopLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.running = false
	w.generation++
}

func (w *Watchdog) scheduleLocked(gen uint64) {
	w.timer = w.clock.AfterFunc(w.interval, func() { w.poll(gen) })
}

func (w *Watchdog) poll(gen uint64) {
	w.mu.Lock()
	if !w.running || gen != w.generation {
		w.mu.Unlock()
		return
	}

	if w.clock.Now().Sub(w.lastSpeech) < w.idle {
		w.scheduleLocked(gen)
		w.mu.Unlock()
		return
	}

	callback := w.onIdle
	w.stopLocked()
	w.mu.Unlock()

	if callback != nil {
		callback()
	}
}
