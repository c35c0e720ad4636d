package engine

import (
	"container/heap"
	"fmt"

	"proteus/src/core"
)

// priceHeap is a lazily validated candidate-best-price heap. Bids negate the
// sort so the highest price surfaces first. Entries are never removed eagerly;
// stale prices (level drained or deleted) are popped at read time against the
// authoritative per-price queues.
type priceHeap struct {
	prices []float64
	desc   bool
}

func (h priceHeap) Len() int { return len(h.prices) }

func (h priceHeap) Less(i, j int) bool {
	if h.desc {
		return h.prices[i] > h.prices[j]
	}
	return h.prices[i] < h.prices[j]
}

func (h priceHeap) Swap(i, j int) { h.prices[i], h.prices[j] = h.prices[j], h.prices[i] }

func (h *priceHeap) Push(x any) { h.prices = append(h.prices, x.(float64)) }

func (h *priceHeap) Pop() any {
	old := h.prices
	n := len(old)
	price := old[n-1]
	h.prices = old[:n-1]
	return price
}

// CLOB is a price-time-priority central limit order book for a single
// probability-denominated contract. The book is single-threaded by design:
// matching correctness depends on a strict global order over submissions,
// enforced by the admission sequence.
type CLOB struct {
	orders    map[string]*restingOrder
	bidLevels map[float64][]*restingOrder
	askLevels map[float64][]*restingOrder
	bidPrices priceHeap
	askPrices priceHeap
	lastSeq   int64
	lastFill  int64
}

func NewCLOB() *CLOB {
	return &CLOB{
		orders:    make(map[string]*restingOrder),
		bidLevels: make(map[float64][]*restingOrder),
		askLevels: make(map[float64][]*restingOrder),
		bidPrices: priceHeap{desc: true},
		askPrices: priceHeap{desc: false},
	}
}

func (b *CLOB) Name() string { return "clob" }

// Submit validates the intent and rests it at its price level, appended to
// that level's time-ordered queue. Rejected orders are never inserted.
func (b *CLOB) Submit(intent core.OrderIntent) error {
	if err := validateIntent(intent); err != nil {
		return err
	}
	if _, exists := b.orders[intent.IntentID]; exists {
		return fmt.Errorf("intent %q: %w", intent.IntentID, ErrDuplicateOrder)
	}

	b.lastSeq++
	order := &restingOrder{
		orderID:   intent.IntentID,
		agentID:   intent.AgentID,
		side:      intent.Side,
		price:     intent.Price,
		remaining: intent.Size,
		tsMs:      intent.TsMs,
		seqNo:     b.lastSeq,
	}
	b.orders[order.orderID] = order

	if order.side == core.SideBuy {
		level, exists := b.bidLevels[order.price]
		b.bidLevels[order.price] = append(level, order)
		if !exists {
			heap.Push(&b.bidPrices, order.price)
		}
	} else {
		level, exists := b.askLevels[order.price]
		b.askLevels[order.price] = append(level, order)
		if !exists {
			heap.Push(&b.askPrices, order.price)
		}
	}
	return nil
}

// Cancel zeroes the remaining size of the targeted order, making it lazily
// prunable. Unknown orders and agent mismatches are silently ignored: a
// cancel racing a concurrent match is resolved in favor of whichever the
// engine observes first during its clearing pass.
func (b *CLOB) Cancel(intent core.CancelIntent) {
	order, exists := b.orders[intent.OrderID]
	if !exists || order.agentID != intent.AgentID {
		return
	}
	order.remaining = 0
	delete(b.orders, order.orderID)
}

// Clear repeatedly matches the best bid against the best ask until no cross
// remains. Execution price is the price of the order with the lower admission
// sequence (the side that queued first gets its price), match size is the
// smaller remaining size, and partial fills keep queue position.
func (b *CLOB) Clear(tsMs int64) []core.Fill {
	var fills []core.Fill
	for {
		bid := b.bestOrder(core.SideBuy)
		ask := b.bestOrder(core.SideSell)
		if bid == nil || ask == nil || bid.price < ask.price {
			break
		}

		size := bid.remaining
		if ask.remaining < size {
			size = ask.remaining
		}
		price := bid.price
		if ask.seqNo < bid.seqNo {
			price = ask.price
		}

		b.lastFill++
		fills = append(fills, core.Fill{
			FillID:      fmt.Sprintf("fill-%d", b.lastFill),
			TsMs:        tsMs,
			BuyAgentID:  bid.agentID,
			SellAgentID: ask.agentID,
			Price:       price,
			Size:        size,
		})

		bid.remaining -= size
		ask.remaining -= size
		if bid.remaining <= 0 {
			delete(b.orders, bid.orderID)
		}
		if ask.remaining <= 0 {
			delete(b.orders, ask.orderID)
		}
	}
	return fills
}

// bestOrder returns the head order of the best live level on one side,
// pruning depleted orders and stale heap entries lazily.
func (b *CLOB) bestOrder(side core.Side) *restingOrder {
	levels := b.askLevels
	prices := &b.askPrices
	if side == core.SideBuy {
		levels = b.bidLevels
		prices = &b.bidPrices
	}

	for prices.Len() > 0 {
		price := prices.prices[0]
		level := levels[price]
		for len(level) > 0 && level[0].remaining <= 0 {
			level = level[1:]
		}
		if len(level) == 0 {
			delete(levels, price)
			heap.Pop(prices)
			continue
		}
		levels[price] = level
		return level[0]
	}
	return nil
}

// BestBid returns the best live bid price and the total size resting there.
func (b *CLOB) BestBid() (price float64, size float64, ok bool) {
	return b.bestLevel(core.SideBuy)
}

// BestAsk returns the best live ask price and the total size resting there.
func (b *CLOB) BestAsk() (price float64, size float64, ok bool) {
	return b.bestLevel(core.SideSell)
}

func (b *CLOB) bestLevel(side core.Side) (float64, float64, bool) {
	head := b.bestOrder(side)
	if head == nil {
		return 0, 0, false
	}
	levels := b.askLevels
	if side == core.SideBuy {
		levels = b.bidLevels
	}
	var total float64
	for _, order := range levels[head.price] {
		if order.remaining > 0 {
			total += order.remaining
		}
	}
	return head.price, total, true
}

// OpenOrders reports the number of live resting orders.
func (b *CLOB) OpenOrders() int {
	return len(b.orders)
}
