package core

import (
	"errors"
	"fmt"
	"sort"
)

type EventType string

const (
	EventNews       EventType = "news"
	EventOrder      EventType = "order"
	EventCancel     EventType = "cancel"
	EventQuote      EventType = "quote"
	EventFill       EventType = "fill"
	EventBatchClear EventType = "batch_clear"
	EventRFQRequest EventType = "rfq_request"
	EventRFQQuote   EventType = "rfq_quote"
	EventRFQAccept  EventType = "rfq_accept"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

var (
	ErrNegativeTimestamp = errors.New("ts_ms must be non-negative")
	ErrNegativeSeqNo     = errors.New("seq_no must be non-negative")
)

// Event is the base timeline record shared by agents and mechanisms.
//
// Ordering policy:
//  1. TsMs ascending (millisecond precision)
//  2. SeqNo ascending (deterministic tie-break within same timestamp)
//  3. EventID ascending (final stable tie-break)
type Event struct {
	EventID string         `json:"event_id"`
	TsMs    int64          `json:"ts_ms"`
	Type    EventType      `json:"event_type"`
	Payload map[string]any `json:"payload"`
	SeqNo   int64          `json:"seq_no"`
}

// NewEvent builds an event with SeqNo 0 (unscheduled). The scheduler assigns
// the sequence number at admission time.
func NewEvent(eventID string, tsMs int64, eventType EventType, payload map[string]any) (Event, error) {
	if tsMs < 0 {
		return Event{}, fmt.Errorf("event %q: %w", eventID, ErrNegativeTimestamp)
	}
	return Event{
		EventID: eventID,
		TsMs:    tsMs,
		Type:    eventType,
		Payload: payload,
	}, nil
}

// WithSeqNo returns a copy of the event carrying the given sequence number.
func (e Event) WithSeqNo(seqNo int64) (Event, error) {
	if seqNo < 0 {
		return Event{}, fmt.Errorf("event %q: %w", e.EventID, ErrNegativeSeqNo)
	}
	out := e
	out.SeqNo = seqNo
	return out, nil
}

// Less reports whether e sorts before other under the replay ordering key
// (TsMs, SeqNo, EventID).
func (e Event) Less(other Event) bool {
	if e.TsMs != other.TsMs {
		return e.TsMs < other.TsMs
	}
	if e.SeqNo != other.SeqNo {
		return e.SeqNo < other.SeqNo
	}
	return e.EventID < other.EventID
}

// SortEvents orders events in place by the replay key.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Less(events[j])
	})
}

// ReplayEvents rebuilds state from an event log using deterministic ordering.
// The input slice is left untouched.
func ReplayEvents[S any](events []Event, reducer func(S, Event) S, initial S) S {
	ordered := make([]Event, len(events))
	copy(ordered, events)
	SortEvents(ordered)

	state := initial
	for _, event := range ordered {
		state = reducer(state, event)
	}
	return state
}

// OrderIntent is an agent order consumed by a mechanism. Immutable once created.
type OrderIntent struct {
	IntentID string  `json:"intent_id"`
	AgentID  string  `json:"agent_id"`
	TsMs     int64   `json:"ts_ms"`
	Side     Side    `json:"side"`
	Price    float64 `json:"price"`
	Size     float64 `json:"size"`
	TIF      string  `json:"tif"`
}

// NewOrderIntent builds an intent with the default "GTC" time-in-force.
func NewOrderIntent(intentID, agentID string, tsMs int64, side Side, price, size float64) OrderIntent {
	return OrderIntent{
		IntentID: intentID,
		AgentID:  agentID,
		TsMs:     tsMs,
		Side:     side,
		Price:    price,
		Size:     size,
		TIF:      "GTC",
	}
}

// CancelIntent is an agent cancellation targeting a resting order.
type CancelIntent struct {
	IntentID string `json:"intent_id"`
	AgentID  string `json:"agent_id"`
	TsMs     int64  `json:"ts_ms"`
	OrderID  string `json:"order_id"`
}

// Fill is one matched trade emitted by a mechanism's clearing step.
type Fill struct {
	FillID      string  `json:"fill_id"`
	TsMs        int64   `json:"ts_ms"`
	BuyAgentID  string  `json:"buy_agent_id"`
	SellAgentID string  `json:"sell_agent_id"`
	Price       float64 `json:"price"`
	Size        float64 `json:"size"`
}
