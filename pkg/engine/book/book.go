package book

import (
	"container/heap"
	"sync"
)

// Book is the resting-order collection for one property. Price levels are
// FIFO queues keyed by price, with heaps tracking best bid/ask for O(1) peek.
// Strict price-time priority: best price first, earliest order first within a
// level.
//
// The book's mutex protects concurrent snapshot reads; write operations
// (Match, Add, Cancel) are additionally serialized per property by the engine
// so validate-then-commit sequences cannot interleave.
type Book struct {
	mu sync.RWMutex

	propertyID string

	bidHeap *MaxPriceHeap
	askHeap *MinPriceHeap

	bids map[int64][]*Order // price -> FIFO queue
	asks map[int64][]*Order

	index map[string]*Order // order ID -> resting order

	lastPrice int64 // most recent fill price, 0 before first trade
}

func New(propertyID string) *Book {
	bidHeap := &MaxPriceHeap{}
	askHeap := &MinPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		propertyID: propertyID,
		bidHeap:    bidHeap,
		askHeap:    askHeap,
		bids:       make(map[int64][]*Order),
		asks:       make(map[int64][]*Order),
		index:      make(map[string]*Order),
	}
}

func (b *Book) PropertyID() string { return b.propertyID }

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Add rests an order without matching. Used when rebuilding the book from
// persisted open orders; callers must add in CreatedAt order to preserve time
// priority.
func (b *Book) Add(o *Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rest(o)
}

func (b *Book) rest(o *Order) {
	if o.Side == Buy {
		if len(b.bids[o.Price]) == 0 {
			heap.Push(b.bidHeap, o.Price)
		}
		b.bids[o.Price] = append(b.bids[o.Price], o)
	} else {
		if len(b.asks[o.Price]) == 0 {
			heap.Push(b.askHeap, o.Price)
		}
		b.asks[o.Price] = append(b.asks[o.Price], o)
	}
	b.index[o.ID] = o
}

// Match fills the taker against the opposite side in price-time priority.
// The fill price is always the resting maker's limit price; the taker never
// trades through its own limit because only crossing levels are visited.
//
// Resting orders owned by the taker's investor are skipped entirely (wash
// trade guard) and matching continues with the next order in priority.
//
// onFill is invoked once per fill after both orders' fill counters and
// statuses are advanced; if it returns an error the counters are rolled back,
// matching stops, and the taker does not rest. Earlier fills stand. If the
// taker has remaining shares after the loop it rests in the book.
func (b *Book) Match(taker *Order, onFill func(Fill) error) ([]Fill, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var fills []Fill

	opp := b.asks
	if taker.Side == Sell {
		opp = b.bids
	}

	for _, price := range b.crossingPrices(taker) {
		level := opp[price]
		i := 0
		for i < len(level) && taker.Remaining() > 0 {
			maker := level[i]
			if maker.InvestorID == taker.InvestorID {
				i++
				continue
			}

			qty := min(taker.Remaining(), maker.Remaining())
			fill := Fill{Taker: taker, Maker: maker, Price: maker.Price, Shares: qty}

			prevTaker, prevMaker := taker.Status, maker.Status
			taker.Filled += qty
			maker.Filled += qty
			taker.Status = statusAfterFill(taker)
			maker.Status = statusAfterFill(maker)

			if onFill != nil {
				if err := onFill(fill); err != nil {
					taker.Filled -= qty
					maker.Filled -= qty
					taker.Status, maker.Status = prevTaker, prevMaker
					return fills, err
				}
			}

			fills = append(fills, fill)
			b.lastPrice = fill.Price

			if maker.Remaining() == 0 {
				level = append(level[:i], level[i+1:]...)
				opp[price] = level
				delete(b.index, maker.ID)
			} else {
				i++
			}
		}

		if len(opp[price]) == 0 {
			delete(opp, price)
			b.removeFromHeap(taker.Side, price)
		}
		if taker.Remaining() == 0 {
			break
		}
	}

	if taker.Remaining() > 0 {
		b.rest(taker)
	}
	return fills, nil
}

func statusAfterFill(o *Order) Status {
	if o.Remaining() == 0 {
		return Filled
	}
	return PartiallyFilled
}

// crossingPrices returns opposite-side price levels the taker's limit
// crosses, sorted best-first. Computed up front: matching never creates
// levels, only drains them.
func (b *Book) crossingPrices(taker *Order) []int64 {
	var prices []int64
	if taker.Side == Buy {
		for _, p := range b.askHeap.Ascending() {
			if p > taker.Price {
				break
			}
			prices = append(prices, p)
		}
	} else {
		for _, p := range b.bidHeap.Descending() {
			if p < taker.Price {
				break
			}
			prices = append(prices, p)
		}
	}
	return prices
}

// Cancel removes a resting order from the book. Returns false if the order is
// not resting (already filled, cancelled, or never rested).
func (b *Book) Cancel(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.index[id]
	if !ok {
		return false
	}

	side := b.bids
	if o.Side == Sell {
		side = b.asks
	}

	level := side[o.Price]
	for i, resting := range level {
		if resting.ID == id {
			side[o.Price] = append(level[:i], level[i+1:]...)
			if len(side[o.Price]) == 0 {
				delete(side, o.Price)
				// Removing the level on the order's own side.
				if o.Side == Buy {
					b.removeBidLevel(o.Price)
				} else {
					b.removeAskLevel(o.Price)
				}
			}
			delete(b.index, id)
			return true
		}
	}
	return false
}

// removeFromHeap drops an emptied price level on the side opposite the taker.
func (b *Book) removeFromHeap(takerSide Side, price int64) {
	if takerSide == Buy {
		b.removeAskLevel(price)
	} else {
		b.removeBidLevel(price)
	}
}

// O(N) worst case, but levels empty rarely relative to matches.
func (b *Book) removeBidLevel(price int64) {
	for i := 0; i < b.bidHeap.Len(); i++ {
		if (*b.bidHeap)[i] == price {
			heap.Remove(b.bidHeap, i)
			return
		}
	}
}

func (b *Book) removeAskLevel(price int64) {
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == price {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}

// BidLevels returns aggregated bid levels sorted high to low (best first).
func (b *Book) BidLevels() []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var levels []PriceLevel
	for _, price := range b.bidHeap.Descending() {
		orders := b.bids[price]
		if len(orders) == 0 {
			continue
		}
		var total int64
		for _, o := range orders {
			total += o.Remaining()
		}
		levels = append(levels, PriceLevel{Price: price, Shares: total})
	}
	return levels
}

// AskLevels returns aggregated ask levels sorted low to high (best first).
func (b *Book) AskLevels() []PriceLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var levels []PriceLevel
	for _, price := range b.askHeap.Ascending() {
		orders := b.asks[price]
		if len(orders) == 0 {
			continue
		}
		var total int64
		for _, o := range orders {
			total += o.Remaining()
		}
		levels = append(levels, PriceLevel{Price: price, Shares: total})
	}
	return levels
}

// BestBid returns the highest bid price, or false if no bids rest.
func (b *Book) BestBid() (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.Peek(), true
}

// BestAsk returns the lowest ask price, or false if no asks rest.
func (b *Book) BestAsk() (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.Peek(), true
}

// LastPrice returns the most recent fill price, 0 before the first trade.
func (b *Book) LastPrice() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPrice
}

// Resting reports whether an order currently rests in the book.
func (b *Book) Resting(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.index[id]
	return ok
}
