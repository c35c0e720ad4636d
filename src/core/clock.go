package core

import "errors"

var ErrNegativeAdvance = errors.New("delta_ms must be non-negative")

// Clock is the simulation time source. Implementations are purely logical;
// nothing in the core reads wall-clock time.
type Clock interface {
	NowMs() int64
	Advance(deltaMs int64) (int64, error)
}

// EventClock is the minimal deterministic clock implementation.
type EventClock struct {
	nowMs int64
}

func NewEventClock() *EventClock {
	return &EventClock{}
}

func (c *EventClock) NowMs() int64 {
	return c.nowMs
}

func (c *EventClock) Advance(deltaMs int64) (int64, error) {
	if deltaMs < 0 {
		return c.nowMs, ErrNegativeAdvance
	}
	c.nowMs += deltaMs
	return c.nowMs, nil
}
