package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fracshare/marketd/pkg/engine/book"
	"github.com/fracshare/marketd/pkg/engine/ledger"
	"github.com/fracshare/marketd/pkg/market"
	"github.com/fracshare/marketd/pkg/metrics"
	"github.com/fracshare/marketd/pkg/util"
)

// Engine coordinates listings, per-property order books, and the ledger.
//
// Concurrency model: one mutex per property book serializes every
// submit/match/cancel for that property, so validate-then-commit sequences
// never interleave; different properties proceed fully in parallel. Wallet
// state spans properties and serializes inside the ledger. There are no
// cross-property transactions.
type Engine struct {
	registry *market.Registry
	ledger   *ledger.Ledger
	clock    util.Clock
	log      *zap.SugaredLogger

	mu        sync.RWMutex
	books     map[string]*book.Book
	bookLocks map[string]*sync.Mutex
	orders    map[string]*book.Order // order ID -> order, any status
	seq       int64                  // acceptance counter, persisted on each order

	onTrade func(*ledger.Trade)
	onBook  func(propertyID string)
}

func New(registry *market.Registry, led *ledger.Ledger, clock util.Clock, log *zap.SugaredLogger) *Engine {
	return &Engine{
		registry:  registry,
		ledger:    led,
		clock:     clock,
		log:       log,
		books:     make(map[string]*book.Book),
		bookLocks: make(map[string]*sync.Mutex),
		orders:    make(map[string]*book.Order),
	}
}

// OnTrade registers a hook invoked after each settled trade (push feeds,
// not called under the book lock's critical section for reads).
func (e *Engine) OnTrade(fn func(*ledger.Trade)) { e.onTrade = fn }

// OnBookChange registers a hook invoked after any book mutation.
func (e *Engine) OnBookChange(fn func(propertyID string)) { e.onBook = fn }

// Restore rebuilds in-memory books and the order index from persisted
// orders. Open orders are re-added in acceptance order (CreatedAt, then the
// persisted sequence for same-millisecond ties) so time priority survives
// restarts.
func (e *Engine) Restore() error {
	orders, err := e.ledger.AllOrders()
	if err != nil {
		return fmt.Errorf("restore orders: %w", err)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt < orders[j].CreatedAt
		}
		return orders[i].Seq < orders[j].Seq
	})

	open := 0
	for _, o := range orders {
		e.orders[o.ID] = o
		if o.Seq > e.seq {
			e.seq = o.Seq
		}
		if !o.Terminal() {
			b, _ := e.propertyBook(o.PropertyID)
			b.Add(o)
			open++
		}
	}
	e.log.Infow("engine_restored", "orders", len(orders), "open", open)
	return nil
}

func (e *Engine) propertyBook(propertyID string) (*book.Book, *sync.Mutex) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.books[propertyID]
	if !ok {
		b = book.New(propertyID)
		e.books[propertyID] = b
		e.bookLocks[propertyID] = &sync.Mutex{}
	}
	return b, e.bookLocks[propertyID]
}

// SubmitOrder validates, reserves, matches, and settles a new limit order.
// The returned order carries filled/remaining counts so callers can report
// partial fills; the returned trades are the fills settled immediately.
func (e *Engine) SubmitOrder(investorID, propertyID string, side book.Side, shares, limitPrice int64) (*book.Order, []*ledger.Trade, error) {
	if investorID == "" {
		metrics.OrdersRejected.WithLabelValues("invalid").Inc()
		return nil, nil, fmt.Errorf("%w: missing investor id", ErrInvalidOrder)
	}
	if side != book.Buy && side != book.Sell {
		metrics.OrdersRejected.WithLabelValues("invalid").Inc()
		return nil, nil, fmt.Errorf("%w: bad side %d", ErrInvalidOrder, side)
	}
	if shares <= 0 || limitPrice <= 0 {
		metrics.OrdersRejected.WithLabelValues("invalid").Inc()
		return nil, nil, fmt.Errorf("%w: shares=%d price=%d", ErrInvalidOrder, shares, limitPrice)
	}
	notional, ok := util.Notional(shares, limitPrice)
	if !ok {
		metrics.OrdersRejected.WithLabelValues("invalid").Inc()
		return nil, nil, fmt.Errorf("%w: notional %d*%d overflows", ErrInvalidOrder, shares, limitPrice)
	}

	listing, err := e.registry.Get(propertyID)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("unknown_property").Inc()
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProperty, propertyID)
	}
	if err := listing.ValidateOrder(limitPrice, shares); err != nil {
		metrics.OrdersRejected.WithLabelValues("invalid").Inc()
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	b, lock := e.propertyBook(propertyID)
	lock.Lock()
	defer lock.Unlock()

	// Commit the resource before matching: a sell reserves shares, a buy
	// reserves funds at the order's own limit.
	if side == book.Sell {
		if err := e.ledger.ReserveShares(investorID, propertyID, shares); err != nil {
			metrics.OrdersRejected.WithLabelValues("insufficient_shares").Inc()
			return nil, nil, err
		}
	} else {
		if err := e.ledger.ReserveFunds(investorID, notional); err != nil {
			metrics.OrdersRejected.WithLabelValues("insufficient_funds").Inc()
			return nil, nil, err
		}
	}

	now := e.clock.Now().UnixMilli()
	o := &book.Order{
		ID:         uuid.NewString(),
		PropertyID: propertyID,
		InvestorID: investorID,
		Side:       side,
		Shares:     shares,
		Price:      limitPrice,
		Status:     book.Open,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	e.mu.Lock()
	e.seq++
	o.Seq = e.seq
	e.orders[o.ID] = o
	e.mu.Unlock()

	if err := e.ledger.SaveOrder(o); err != nil {
		e.abortOrder(o)
		return nil, nil, err
	}

	var trades []*ledger.Trade
	_, matchErr := b.Match(o, func(f book.Fill) error {
		t, err := e.settleFill(propertyID, f, now)
		if err != nil {
			return err
		}
		trades = append(trades, t)
		return nil
	})
	if matchErr != nil {
		// Settlement refused a fill: a reservation made earlier was wrong.
		// Earlier fills of this order stand (each settled atomically); the
		// order is pulled so the defect cannot spread further.
		e.log.Errorw("settlement_failed", "order", o.ID, "property", propertyID, "err", matchErr)
		e.abortOrder(o)
		return nil, trades, matchErr
	}

	if err := e.ledger.SaveOrder(o); err != nil {
		return nil, trades, err
	}

	metrics.OrdersSubmitted.Inc()
	e.log.Infow("order_accepted",
		"order", o.ID, "investor", investorID, "property", propertyID,
		"side", side.String(), "shares", shares, "price", limitPrice,
		"filled", o.Filled, "status", o.Status.String())

	e.notify(propertyID, trades)
	return o, trades, nil
}

// settleFill records one trade and applies it to the ledger atomically.
func (e *Engine) settleFill(propertyID string, f book.Fill, now int64) (*ledger.Trade, error) {
	buyOrder, sellOrder := f.BuyOrder(), f.SellOrder()
	trade := &ledger.Trade{
		ID:          uuid.NewString(),
		PropertyID:  propertyID,
		BuyOrderID:  buyOrder.ID,
		SellOrderID: sellOrder.ID,
		BuyerID:     buyOrder.InvestorID,
		SellerID:    sellOrder.InvestorID,
		Shares:      f.Shares,
		Price:       f.Price,
		ExecutedAt:  now,
	}
	buyOrder.UpdatedAt = now
	sellOrder.UpdatedAt = now

	if err := e.ledger.ApplySettlement(trade, buyOrder, sellOrder); err != nil {
		return nil, err
	}

	metrics.TradesSettled.Inc()
	metrics.SharesTraded.Add(float64(trade.Shares))
	metrics.VolumeCents.Add(float64(trade.Notional()))
	return trade, nil
}

// abortOrder cancels an order after a settlement failure and releases its
// remaining reservation, keeping the ledger's committed totals consistent.
func (e *Engine) abortOrder(o *book.Order) {
	if o.Terminal() {
		return
	}
	remaining := o.Remaining()
	o.Status = book.Cancelled
	o.UpdatedAt = e.clock.Now().UnixMilli()

	var err error
	if o.Side == book.Sell {
		err = e.ledger.ReleaseShares(o.InvestorID, o.PropertyID, remaining)
	} else {
		err = e.ledger.ReleaseFunds(o.InvestorID, remaining*o.Price)
	}
	if err != nil {
		e.log.Errorw("abort_release_failed", "order", o.ID, "err", err)
	}
	if err := e.ledger.SaveOrder(o); err != nil {
		e.log.Errorw("abort_persist_failed", "order", o.ID, "err", err)
	}
}

// CancelOrder removes an investor's open order and releases its remaining
// committed shares or funds. A cancel racing a match for the same order is
// resolved by the per-property lock: whichever runs second sees the other's
// result.
func (e *Engine) CancelOrder(investorID, orderID string) (*book.Order, error) {
	e.mu.RLock()
	o, ok := e.orders[orderID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if o.InvestorID != investorID {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, orderID)
	}

	b, lock := e.propertyBook(o.PropertyID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock: a match may have completed the order while
	// this cancel waited.
	if o.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyTerminal, orderID, o.Status)
	}

	if !b.Cancel(o.ID) {
		e.log.Warnw("cancel_not_resting", "order", o.ID, "status", o.Status.String())
	}

	remaining := o.Remaining()
	var err error
	if o.Side == book.Sell {
		err = e.ledger.ReleaseShares(investorID, o.PropertyID, remaining)
	} else {
		err = e.ledger.ReleaseFunds(investorID, remaining*o.Price)
	}
	if err != nil {
		return nil, err
	}

	o.Status = book.Cancelled
	o.UpdatedAt = e.clock.Now().UnixMilli()
	if err := e.ledger.SaveOrder(o); err != nil {
		return nil, err
	}

	metrics.OrdersCancelled.Inc()
	e.log.Infow("order_cancelled", "order", o.ID, "investor", investorID, "released", remaining)

	e.notify(o.PropertyID, nil)
	return o, nil
}

func (e *Engine) notify(propertyID string, trades []*ledger.Trade) {
	if e.onTrade != nil {
		for _, t := range trades {
			e.onTrade(t)
		}
	}
	if e.onBook != nil {
		e.onBook(propertyID)
	}
}

// Orders returns all of an investor's orders across all statuses.
func (e *Engine) Orders(investorID string) ([]*book.Order, error) {
	return e.ledger.Orders(investorID)
}

// Book returns the order book for read-only snapshot queries.
func (e *Engine) Book(propertyID string) (*book.Book, error) {
	if _, err := e.registry.Get(propertyID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, propertyID)
	}
	b, _ := e.propertyBook(propertyID)
	return b, nil
}

// RecentTrades returns up to limit settled trades for a property, newest
// first.
func (e *Engine) RecentTrades(propertyID string, limit int) ([]*ledger.Trade, error) {
	if _, err := e.registry.Get(propertyID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, propertyID)
	}
	return e.ledger.RecentTrades(propertyID, limit)
}

// Wallet returns an investor's wallet snapshot.
func (e *Engine) Wallet(investorID string) ledger.Wallet {
	return e.ledger.Wallet(investorID)
}

// Positions returns an investor's share holdings.
func (e *Engine) Positions(investorID string) ([]ledger.Position, error) {
	return e.ledger.Positions(investorID)
}

// Deposit credits investor funds (wallet service shim).
func (e *Engine) Deposit(investorID string, amount int64) error {
	if investorID == "" {
		return fmt.Errorf("%w: missing investor id", ErrInvalidOrder)
	}
	return e.ledger.Deposit(investorID, amount)
}

// GrantShares records primary issuance from the share registry collaborator.
func (e *Engine) GrantShares(investorID, propertyID string, shares int64) error {
	if _, err := e.registry.Get(propertyID); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, propertyID)
	}
	return e.ledger.GrantShares(investorID, propertyID, shares)
}

// Listings returns all property listings.
func (e *Engine) Listings() []*market.Listing {
	return e.registry.List()
}

// Listing returns one property listing.
func (e *Engine) Listing(propertyID string) (*market.Listing, error) {
	l, err := e.registry.Get(propertyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProperty, propertyID)
	}
	return l, nil
}
