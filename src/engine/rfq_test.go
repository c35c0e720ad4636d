package engine

import (
	"testing"

	"proteus/src/core"
)

func TestRFQMatchesRequestAgainstBestQuote(t *testing.T) {
	rfq := NewRFQ()

	mustSubmit(t, rfq, limitOrder("q1", "dealer-1", core.SideSell, 0.52, 5.0, 1))
	mustSubmit(t, rfq, limitOrder("q2", "dealer-2", core.SideSell, 0.50, 5.0, 2))
	mustSubmit(t, rfq, limitOrder("r1", "inf-1", core.SideBuy, 0.55, 3.0, 3))

	fills := rfq.Clear(4)
	if len(fills) != 1 {
		t.Fatalf("Expected 1 fill, got: %d", len(fills))
	}
	if fills[0].SellAgentID != "dealer-2" {
		t.Errorf("Expected the cheaper quote to win, got: %s", fills[0].SellAgentID)
	}
	if fills[0].Price != 0.50 {
		t.Errorf("Expected execution at the quote price 0.50, got: %v", fills[0].Price)
	}
	if fills[0].Size != 3.0 {
		t.Errorf("Expected fill size 3, got: %v", fills[0].Size)
	}
}

func TestRFQRespectsRequestLimitPrice(t *testing.T) {
	rfq := NewRFQ()

	mustSubmit(t, rfq, limitOrder("q1", "dealer-1", core.SideSell, 0.60, 5.0, 1))
	mustSubmit(t, rfq, limitOrder("r1", "inf-1", core.SideBuy, 0.55, 2.0, 2))

	if fills := rfq.Clear(3); len(fills) != 0 {
		t.Fatalf("Expected no fill above the request limit, got: %d", len(fills))
	}
	if rfq.OpenRequests() != 1 {
		t.Errorf("Expected the request to stay open, got: %d", rfq.OpenRequests())
	}

	// A later, better quote fills the still-open request.
	mustSubmit(t, rfq, limitOrder("q2", "dealer-2", core.SideSell, 0.54, 2.0, 10))
	fills := rfq.Clear(11)
	if len(fills) != 1 || fills[0].Price != 0.54 {
		t.Fatalf("Expected fill at 0.54, got: %+v", fills)
	}
	if rfq.OpenRequests() != 0 {
		t.Errorf("Expected request closed, got: %d open", rfq.OpenRequests())
	}
}

func TestRFQQuotesExpireAfterTTL(t *testing.T) {
	rfq := NewRFQWithTTL(100)

	mustSubmit(t, rfq, limitOrder("q1", "dealer-1", core.SideSell, 0.50, 5.0, 0))
	mustSubmit(t, rfq, limitOrder("r1", "inf-1", core.SideBuy, 0.55, 2.0, 150))

	if fills := rfq.Clear(150); len(fills) != 0 {
		t.Errorf("Expected expired quote not to fill, got: %d fills", len(fills))
	}
}

func TestRFQSellRequestTakesHighestBidQuote(t *testing.T) {
	rfq := NewRFQ()

	mustSubmit(t, rfq, limitOrder("q1", "dealer-1", core.SideBuy, 0.45, 4.0, 1))
	mustSubmit(t, rfq, limitOrder("q2", "dealer-2", core.SideBuy, 0.48, 4.0, 2))
	mustSubmit(t, rfq, limitOrder("r1", "noise-1", core.SideSell, 0.46, 3.0, 3))

	fills := rfq.Clear(4)
	if len(fills) != 1 {
		t.Fatalf("Expected 1 fill, got: %d", len(fills))
	}
	if fills[0].BuyAgentID != "dealer-2" || fills[0].Price != 0.48 {
		t.Errorf("Expected dealer-2 at 0.48, got: %s at %v", fills[0].BuyAgentID, fills[0].Price)
	}
}

func TestRFQCancelWithdrawsQuote(t *testing.T) {
	rfq := NewRFQ()

	mustSubmit(t, rfq, limitOrder("q1", "dealer-1", core.SideSell, 0.50, 5.0, 1))
	rfq.Cancel(core.CancelIntent{IntentID: "c1", AgentID: "dealer-1", TsMs: 2, OrderID: "q1"})
	mustSubmit(t, rfq, limitOrder("r1", "inf-1", core.SideBuy, 0.55, 2.0, 3))

	if fills := rfq.Clear(4); len(fills) != 0 {
		t.Errorf("Expected withdrawn quote not to fill, got: %d fills", len(fills))
	}
}
