package call

import (
	"github.com/mockvoice/mockvoice/internal/interview"
	"github.com/mockvoice/mockvoice/internal/transcript"
)

// Snapshot is a point-in-time copy of the Controller's outbound state.
type Snapshot struct {
	CallID        string             `json:"call_id,omitempty"`
	Mode          interview.Mode     `json:"mode"`
	Status        Status             `json:"status"`
	Generating    bool               `json:"generating"`
	Transcript    []transcript.Entry `json:"transcript"`
	LastLine      *transcript.Entry  `json:"last_line,omitempty"`
	Spec          interview.Spec     `json:"spec"`
	UserSpoke     bool               `json:"user_spoke"`
	AutoStopArmed bool               `json:"auto_stop_armed"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		CallID:        c.callID,
		Mode:          c.mode,
		Status:        c.status,
		Generating:    c.generating,
		Transcript:    c.log.Entries(),
		Spec:          c.spec.Clone(),
		UserSpoke:     c.userSpoke,
		AutoStopArmed: c.latches.autoStopArmed,
	}
	if last, ok := c.log.Last(); ok {
		snap.LastLine = &last
	}
	return snap
}
