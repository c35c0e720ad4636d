package engine

import (
	"fmt"
	"strings"

	"proteus/src/core"
)

// DefaultQuoteTTLMs is how long a dealer quote stays live after submission.
const DefaultQuoteTTLMs = 250

// RFQ is a request-for-quote mechanism. Intents from dealer agents (agent id
// prefixed "dealer-") are quotes with a TTL; intents from anyone else are
// open requests. Clear matches each open request against the best live
// opposite-side quote within the request's limit, at the quote's price.
type RFQ struct {
	requests []*restingOrder
	quotes   []*rfqQuote
	known    map[string]*restingOrder
	quoteTTL int64
	lastSeq  int64
	lastFill int64
}

type rfqQuote struct {
	order     *restingOrder
	expiresMs int64
}

func NewRFQ() *RFQ {
	return NewRFQWithTTL(DefaultQuoteTTLMs)
}

func NewRFQWithTTL(quoteTTLMs int64) *RFQ {
	return &RFQ{
		known:    make(map[string]*restingOrder),
		quoteTTL: quoteTTLMs,
	}
}

func (r *RFQ) Name() string { return "rfq" }

// IsDealer reports whether an agent id names a quoting dealer.
func IsDealer(agentID string) bool {
	return strings.HasPrefix(agentID, "dealer-")
}

func (r *RFQ) Submit(intent core.OrderIntent) error {
	if err := validateIntent(intent); err != nil {
		return err
	}
	if _, exists := r.known[intent.IntentID]; exists {
		return fmt.Errorf("intent %q: %w", intent.IntentID, ErrDuplicateOrder)
	}

	r.lastSeq++
	order := &restingOrder{
		orderID:   intent.IntentID,
		agentID:   intent.AgentID,
		side:      intent.Side,
		price:     intent.Price,
		remaining: intent.Size,
		tsMs:      intent.TsMs,
		seqNo:     r.lastSeq,
	}
	r.known[order.orderID] = order

	if IsDealer(intent.AgentID) {
		r.quotes = append(r.quotes, &rfqQuote{
			order:     order,
			expiresMs: intent.TsMs + r.quoteTTL,
		})
	} else {
		r.requests = append(r.requests, order)
	}
	return nil
}

func (r *RFQ) Cancel(intent core.CancelIntent) {
	order, exists := r.known[intent.OrderID]
	if !exists || order.agentID != intent.AgentID {
		return
	}
	order.remaining = 0
	delete(r.known, order.orderID)
}

// Clear expires stale quotes, then walks open requests in arrival order,
// sweeping the best eligible quotes. A buy request takes the lowest dealer
// sell quote priced at or below its limit; a sell request takes the highest
// dealer buy quote at or above it. Fills execute at the quote price.
func (r *RFQ) Clear(tsMs int64) []core.Fill {
	r.pruneQuotes(tsMs)

	var fills []core.Fill
	liveRequests := r.requests[:0]
	for _, request := range r.requests {
		for request.remaining > 0 {
			quote := r.bestQuote(request)
			if quote == nil {
				break
			}

			size := request.remaining
			if quote.remaining < size {
				size = quote.remaining
			}
			buyer, seller := request, quote
			if request.side == core.SideSell {
				buyer, seller = quote, request
			}

			r.lastFill++
			fills = append(fills, core.Fill{
				FillID:      fmt.Sprintf("fill-%d", r.lastFill),
				TsMs:        tsMs,
				BuyAgentID:  buyer.agentID,
				SellAgentID: seller.agentID,
				Price:       quote.price,
				Size:        size,
			})

			request.remaining -= size
			quote.remaining -= size
			if quote.remaining <= 0 {
				delete(r.known, quote.orderID)
			}
		}
		if request.remaining > 0 {
			liveRequests = append(liveRequests, request)
		} else {
			delete(r.known, request.orderID)
		}
	}
	r.requests = liveRequests
	return fills
}

func (r *RFQ) pruneQuotes(tsMs int64) {
	live := r.quotes[:0]
	for _, quote := range r.quotes {
		if quote.order.remaining <= 0 {
			continue
		}
		if tsMs > quote.expiresMs {
			delete(r.known, quote.order.orderID)
			continue
		}
		live = append(live, quote)
	}
	r.quotes = live
}

// bestQuote returns the most aggressive live opposite-side quote within the
// request's limit price, breaking price ties by quote arrival order.
func (r *RFQ) bestQuote(request *restingOrder) *restingOrder {
	var best *restingOrder
	for _, quote := range r.quotes {
		order := quote.order
		if order.remaining <= 0 || order.side == request.side {
			continue
		}
		if request.side == core.SideBuy {
			if order.price > request.price {
				continue
			}
			if best == nil || order.price < best.price || (order.price == best.price && order.seqNo < best.seqNo) {
				best = order
			}
		} else {
			if order.price < request.price {
				continue
			}
			if best == nil || order.price > best.price || (order.price == best.price && order.seqNo < best.seqNo) {
				best = order
			}
		}
	}
	return best
}

// OpenRequests reports the number of unfilled requests awaiting quotes.
func (r *RFQ) OpenRequests() int {
	count := 0
	for _, request := range r.requests {
		if request.remaining > 0 {
			count++
		}
	}
	return count
}
