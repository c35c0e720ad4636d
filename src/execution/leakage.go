package execution

import "proteus/src/core"

// LeakagePolicy controls which events an observer can see, and how much of
// each payload survives redaction.
type LeakagePolicy interface {
	IsVisible(event core.Event, agentID string, mechanism string) bool
	// VisiblePayload returns the payload as seen by the observer. It never
	// mutates the event.
	VisiblePayload(event core.Event, agentID string, mechanism string) map[string]any
}

// PublicTapeLeakagePolicy shows every event, payload included, to everyone.
type PublicTapeLeakagePolicy struct{}

func (PublicTapeLeakagePolicy) IsVisible(event core.Event, agentID string, mechanism string) bool {
	return true
}

func (PublicTapeLeakagePolicy) VisiblePayload(event core.Event, agentID string, mechanism string) map[string]any {
	return copyPayload(event.Payload)
}

// rfqVisibleFields is the whitelist carried on negotiation events when RFQ
// traffic is private. Everything else in the payload is redacted.
var rfqVisibleFields = map[string]bool{
	"request_id": true,
	"price":      true,
	"size":       true,
	"side":       true,
	"ttl_ms":     true,
	"dealer_id":  true,
	"agent_id":   true,
}

// RFQPrivateLeakagePolicy keeps fills public but strips RFQ negotiation
// payloads down to the whitelisted fields.
type RFQPrivateLeakagePolicy struct{}

func (RFQPrivateLeakagePolicy) IsVisible(event core.Event, agentID string, mechanism string) bool {
	return true
}

func (RFQPrivateLeakagePolicy) VisiblePayload(event core.Event, agentID string, mechanism string) map[string]any {
	switch event.Type {
	case core.EventRFQRequest, core.EventRFQQuote, core.EventRFQAccept:
		visible := make(map[string]any, len(event.Payload))
		for key, value := range event.Payload {
			if rfqVisibleFields[key] {
				visible[key] = value
			}
		}
		return visible
	default:
		return copyPayload(event.Payload)
	}
}

// BuildDefaultLeakagePolicy treats every mechanism as a public tape, so
// baseline comparisons share one information regime.
func BuildDefaultLeakagePolicy() LeakagePolicy {
	return PublicTapeLeakagePolicy{}
}

// BuildRFQPrivateLeakagePolicy is the variant where dealer negotiation stays
// between the parties.
func BuildRFQPrivateLeakagePolicy() LeakagePolicy {
	return RFQPrivateLeakagePolicy{}
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	dup := make(map[string]any, len(payload))
	for key, value := range payload {
		dup[key] = value
	}
	return dup
}
