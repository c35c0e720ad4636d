package core

import "testing"

func TestNewEventRejectsNegativeTimestamp(t *testing.T) {
	_, err := NewEvent("bad", -1, EventOrder, nil)
	if err == nil {
		t.Fatal("Expected error for negative timestamp")
	}
}

func TestWithSeqNoRejectsNegativeSequence(t *testing.T) {
	event, err := NewEvent("e1", 0, EventNews, nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if _, err := event.WithSeqNo(-1); err == nil {
		t.Fatal("Expected error for negative seq_no")
	}
}

func TestEventOrderingKey(t *testing.T) {
	early, _ := NewEvent("b", 1, EventOrder, nil)
	late, _ := NewEvent("a", 2, EventOrder, nil)

	if !early.Less(late) {
		t.Error("Expected lower ts_ms to sort first")
	}

	first, _ := early.WithSeqNo(1)
	second, _ := early.WithSeqNo(2)
	if !first.Less(second) {
		t.Error("Expected lower seq_no to break a timestamp tie")
	}

	idA, _ := NewEvent("a", 5, EventFill, nil)
	idB, _ := NewEvent("b", 5, EventFill, nil)
	if !idA.Less(idB) {
		t.Error("Expected event_id to break the final tie")
	}
}

func TestReplayReconstructsStateFromUnorderedLog(t *testing.T) {
	events := []Event{
		{EventID: "3", TsMs: 2, Type: EventFill, Payload: map[string]any{"delta": 5.0}, SeqNo: 2},
		{EventID: "1", TsMs: 1, Type: EventOrder, Payload: map[string]any{"delta": 2.0}, SeqNo: 1},
		{EventID: "2", TsMs: 2, Type: EventFill, Payload: map[string]any{"delta": -3.0}, SeqNo: 1},
	}

	reducer := func(state []string, event Event) []string {
		return append(state, event.EventID)
	}

	order := ReplayEvents(events, reducer, nil)
	if len(order) != 3 {
		t.Fatalf("Expected 3 events replayed, got: %d", len(order))
	}
	if order[0] != "1" || order[1] != "2" || order[2] != "3" {
		t.Errorf("Expected replay order [1 2 3], got: %v", order)
	}

	// Input slice must not be reordered by the replay.
	if events[0].EventID != "3" {
		t.Error("Expected replay to leave the input log untouched")
	}
}

func TestEventClockRejectsNegativeAdvance(t *testing.T) {
	clock := NewEventClock()

	if _, err := clock.Advance(-1); err == nil {
		t.Fatal("Expected error for negative advance")
	}

	now, err := clock.Advance(10)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if now != 10 || clock.NowMs() != 10 {
		t.Errorf("Expected clock at 10 ms, got: %d", clock.NowMs())
	}
}
