package engine

import (
	"fmt"

	"github.com/google/btree"

	"proteus/src/core"
)

// levelItem adapts a batch level to the btree ordering.
type levelItem struct {
	level *batchLevel
}

func (it *levelItem) Less(than btree.Item) bool {
	return it.level.price < than.(*levelItem).level.price
}

// ladderBook holds per-side price ladders in balanced trees, giving the batch
// auction sorted best-first iteration over whole levels. Admission sequence is
// shared across sides so time priority is global.
type ladderBook struct {
	bids    *btree.BTree
	asks    *btree.BTree
	orders  map[string]*restingOrder
	lastSeq int64
}

func newLadderBook() *ladderBook {
	return &ladderBook{
		bids:   btree.New(16),
		asks:   btree.New(16),
		orders: make(map[string]*restingOrder),
	}
}

func (lb *ladderBook) insert(intent core.OrderIntent) error {
	if err := validateIntent(intent); err != nil {
		return err
	}
	if _, exists := lb.orders[intent.IntentID]; exists {
		return fmt.Errorf("intent %q: %w", intent.IntentID, ErrDuplicateOrder)
	}

	lb.lastSeq++
	order := &restingOrder{
		orderID:   intent.IntentID,
		agentID:   intent.AgentID,
		side:      intent.Side,
		price:     intent.Price,
		remaining: intent.Size,
		tsMs:      intent.TsMs,
		seqNo:     lb.lastSeq,
	}
	lb.orders[order.orderID] = order

	tree := lb.asks
	if order.side == core.SideBuy {
		tree = lb.bids
	}
	probe := &levelItem{level: &batchLevel{price: order.price}}
	if existing := tree.Get(probe); existing != nil {
		level := existing.(*levelItem).level
		level.orders = append(level.orders, order)
		return nil
	}
	probe.level.orders = []*restingOrder{order}
	tree.ReplaceOrInsert(probe)
	return nil
}

func (lb *ladderBook) cancel(intent core.CancelIntent) {
	order, exists := lb.orders[intent.OrderID]
	if !exists || order.agentID != intent.AgentID {
		return
	}
	order.remaining = 0
	delete(lb.orders, order.orderID)
}

func (lb *ladderBook) drop(order *restingOrder) {
	delete(lb.orders, order.orderID)
}

// liveLevels returns the side's levels best-first (bids descending, asks
// ascending), pruning depleted orders and deleting emptied levels on the way.
func (lb *ladderBook) liveLevels(side core.Side) []*batchLevel {
	tree := lb.asks
	if side == core.SideBuy {
		tree = lb.bids
	}

	var out []*batchLevel
	var empty []*levelItem
	visit := func(item btree.Item) bool {
		it := item.(*levelItem)
		live := it.level.orders[:0]
		for _, order := range it.level.orders {
			if order.remaining > 0 {
				live = append(live, order)
			}
		}
		it.level.orders = live
		if len(live) == 0 {
			empty = append(empty, it)
			return true
		}
		out = append(out, it.level)
		return true
	}

	if side == core.SideBuy {
		tree.Descend(visit)
	} else {
		tree.Ascend(visit)
	}
	for _, it := range empty {
		tree.Delete(it)
	}
	return out
}
