package core

import (
	"container/heap"
	"fmt"
)

// scheduledEvent pairs an admitted event with its scheduler-level priority.
// Priority is a secondary ordering key distinct from the event's own
// (ts, seq, id) key: it lets a caller rank event classes at the same
// timestamp (fills before ordinary orders) without touching event identity.
type scheduledEvent struct {
	event    Event
	priority int
}

type eventHeap []scheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.event.TsMs != b.event.TsMs {
		return a.event.TsMs < b.event.TsMs
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.event.SeqNo < b.event.SeqNo
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(scheduledEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// EventScheduler is a deterministic priority queue over pending events,
// ordered by (ts_ms, priority, seq_no). Popping advances the internal clock
// monotonically. The sole determinism guarantee the rest of the system relies
// on: for equal (ts_ms, priority), the earlier-scheduled event pops first.
type EventScheduler struct {
	pending eventHeap
	nowMs   int64
	lastSeq int64
}

func NewEventScheduler() *EventScheduler {
	return &EventScheduler{}
}

// NewEventSchedulerAt starts the scheduler clock at startMs instead of zero.
func NewEventSchedulerAt(startMs int64) *EventScheduler {
	return &EventScheduler{nowMs: startMs}
}

// Schedule admits an event for future delivery and returns the copy carrying
// its assigned sequence number. Sequence numbers are strictly increasing from
// 1 in submission order, independent of priority.
func (s *EventScheduler) Schedule(event Event, priority int) (Event, error) {
	if event.TsMs < s.nowMs {
		return Event{}, fmt.Errorf(
			"cannot schedule event %q at %d ms: scheduler time is %d ms",
			event.EventID, event.TsMs, s.nowMs,
		)
	}

	s.lastSeq++
	admitted, err := event.WithSeqNo(s.lastSeq)
	if err != nil {
		return Event{}, err
	}

	heap.Push(&s.pending, scheduledEvent{event: admitted, priority: priority})
	return admitted, nil
}

// PopNext removes and returns the minimum pending event. The internal clock
// moves forward to the popped event's timestamp and never regresses.
func (s *EventScheduler) PopNext() (Event, bool) {
	if len(s.pending) == 0 {
		return Event{}, false
	}
	item := heap.Pop(&s.pending).(scheduledEvent)
	if item.event.TsMs > s.nowMs {
		s.nowMs = item.event.TsMs
	}
	return item.event, true
}

// HasPending reports whether any events await delivery. Non-mutating.
func (s *EventScheduler) HasPending() bool {
	return len(s.pending) > 0
}

// PeekNextTs returns the timestamp of the next event without removing it.
func (s *EventScheduler) PeekNextTs() (int64, bool) {
	if len(s.pending) == 0 {
		return 0, false
	}
	return s.pending[0].event.TsMs, true
}

// NowMs is the scheduler's current time.
func (s *EventScheduler) NowMs() int64 {
	return s.nowMs
}
