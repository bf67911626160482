package ledger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fracshare/marketd/pkg/engine/book"
	"github.com/fracshare/marketd/pkg/util"
)

type posKey struct {
	investorID string
	propertyID string
}

// Ledger is the authoritative record of wallets and share positions. It is an
// in-memory cache over the Pebble store: reads load lazily, writes go through
// synchronously, and settlement commits every touched record in one batch.
//
// The mutex makes each operation a critical section, so the check-and-commit
// inside Reserve* cannot race with another order passing the same check.
type Ledger struct {
	mu        sync.RWMutex
	wallets   map[string]*Wallet
	positions map[posKey]*Position
	store     *Store
	log       *zap.SugaredLogger
}

func New(dbPath string, log *zap.SugaredLogger) (*Ledger, error) {
	store, err := NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		wallets:   make(map[string]*Wallet),
		positions: make(map[posKey]*Position),
		store:     store,
		log:       log,
	}, nil
}

func (l *Ledger) Close() error {
	return l.store.Close()
}

// walletLocked loads or creates a wallet. Caller holds the write lock.
func (l *Ledger) walletLocked(investorID string) *Wallet {
	if w, ok := l.wallets[investorID]; ok {
		return w
	}
	w, err := l.store.LoadWallet(investorID)
	if err != nil {
		l.log.Errorw("wallet_load_failed", "investor", investorID, "err", err)
	}
	if w == nil {
		w = &Wallet{InvestorID: investorID}
	}
	l.wallets[investorID] = w
	return w
}

// positionLocked loads or creates a position. Caller holds the write lock.
func (l *Ledger) positionLocked(investorID, propertyID string) *Position {
	key := posKey{investorID, propertyID}
	if p, ok := l.positions[key]; ok {
		return p
	}
	p, err := l.store.LoadPosition(investorID, propertyID)
	if err != nil {
		l.log.Errorw("position_load_failed", "investor", investorID, "property", propertyID, "err", err)
	}
	if p == nil {
		p = &Position{InvestorID: investorID, PropertyID: propertyID}
	}
	l.positions[key] = p
	return p
}

// Deposit credits an investor's wallet. The wallet service collaborator calls
// this when funds clear.
func (l *Ledger) Deposit(investorID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.walletLocked(investorID)
	w.Balance += amount
	return l.store.SaveWallet(w)
}

// Withdraw debits available funds; committed funds cannot be withdrawn.
func (l *Ledger) Withdraw(investorID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.walletLocked(investorID)
	if w.Available() < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, w.Available(), amount)
	}
	w.Balance -= amount
	return l.store.SaveWallet(w)
}

// GrantShares records primary issuance from the property share registry
// (the originating investment), distinct from marketplace-driven transfers.
func (l *Ledger) GrantShares(investorID, propertyID string, shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("share grant must be positive: %d", shares)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.positionLocked(investorID, propertyID)
	p.OwnedShares += shares
	return l.store.SavePosition(p)
}

// ReserveFunds commits funds for a new buy order.
func (l *Ledger) ReserveFunds(investorID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("reserve amount must be positive: %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.walletLocked(investorID)
	if w.Available() < amount {
		return fmt.Errorf("%w: available %d, need %d", ErrInsufficientFunds, w.Available(), amount)
	}
	w.CommittedFunds += amount
	return l.store.SaveWallet(w)
}

// ReleaseFunds returns committed funds to available on cancellation.
func (l *Ledger) ReleaseFunds(investorID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("release amount cannot be negative: %d", amount)
	}
	if amount == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.walletLocked(investorID)
	if w.CommittedFunds < amount {
		return fmt.Errorf("%w: releasing %d with only %d committed", ErrInvariantViolation, amount, w.CommittedFunds)
	}
	w.CommittedFunds -= amount
	return l.store.SaveWallet(w)
}

// ReserveShares commits shares for a new sell order.
func (l *Ledger) ReserveShares(investorID, propertyID string, shares int64) error {
	if shares <= 0 {
		return fmt.Errorf("reserve shares must be positive: %d", shares)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.positionLocked(investorID, propertyID)
	if p.Available() < shares {
		return fmt.Errorf("%w: available %d, need %d", ErrInsufficientShares, p.Available(), shares)
	}
	p.CommittedShares += shares
	return l.store.SavePosition(p)
}

// ReleaseShares returns committed shares to available on cancellation.
func (l *Ledger) ReleaseShares(investorID, propertyID string, shares int64) error {
	if shares < 0 {
		return fmt.Errorf("release shares cannot be negative: %d", shares)
	}
	if shares == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.positionLocked(investorID, propertyID)
	if p.CommittedShares < shares {
		return fmt.Errorf("%w: releasing %d with only %d committed", ErrInvariantViolation, shares, p.CommittedShares)
	}
	p.CommittedShares -= shares
	return l.store.SavePosition(p)
}

// ApplySettlement applies one trade in a single Pebble batch: share
// transfer, cash transfer, fund decommit, order state persistence, and the
// trade-log append. Either every effect lands or none does.
//
// The buyer reserved shares×buyLimit when the order was accepted; the trade
// debits shares×price (maker price). When price < buyLimit the difference is
// decommitted back to the buyer's available funds here, per fill.
//
// Any failed precondition means a prior reservation was wrong: the error
// wraps ErrInvariantViolation and nothing is applied.
func (l *Ledger) ApplySettlement(trade *Trade, buy, sell *book.Order) error {
	q := trade.Shares
	cash, okCash := util.Notional(q, trade.Price)
	reserved, okReserved := util.Notional(q, buy.Price)
	if !okCash || !okReserved {
		return fmt.Errorf("%w: trade %s notional %d shares at %d overflows", ErrInvariantViolation, trade.ID, q, trade.Price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sellerPos := l.positionLocked(trade.SellerID, trade.PropertyID)
	buyerPos := l.positionLocked(trade.BuyerID, trade.PropertyID)
	buyerWal := l.walletLocked(trade.BuyerID)
	sellerWal := l.walletLocked(trade.SellerID)

	switch {
	case sellerPos.CommittedShares < q:
		return fmt.Errorf("%w: seller %s committed %d shares, settling %d", ErrInvariantViolation, trade.SellerID, sellerPos.CommittedShares, q)
	case sellerPos.OwnedShares < q:
		return fmt.Errorf("%w: seller %s owns %d shares, settling %d", ErrInvariantViolation, trade.SellerID, sellerPos.OwnedShares, q)
	case buyerWal.CommittedFunds < reserved:
		return fmt.Errorf("%w: buyer %s committed %d, decommitting %d", ErrInvariantViolation, trade.BuyerID, buyerWal.CommittedFunds, reserved)
	case buyerWal.Balance < cash:
		return fmt.Errorf("%w: buyer %s balance %d, debiting %d", ErrInvariantViolation, trade.BuyerID, buyerWal.Balance, cash)
	}

	// Work on copies so a failed validation or commit leaves the cache clean.
	sp, bp := *sellerPos, *buyerPos
	bw, sw := *buyerWal, *sellerWal

	sp.OwnedShares -= q
	sp.CommittedShares -= q
	bp.OwnedShares += q
	bw.Balance -= cash
	bw.CommittedFunds -= reserved
	sw.Balance += cash

	for _, check := range []error{sp.Validate(), bp.Validate(), bw.Validate(), sw.Validate()} {
		if check != nil {
			return fmt.Errorf("%w: %v", ErrInvariantViolation, check)
		}
	}

	batch := l.store.NewBatch()
	defer batch.Close()
	if err := batch.SavePosition(&sp); err != nil {
		return err
	}
	if err := batch.SavePosition(&bp); err != nil {
		return err
	}
	if err := batch.SaveWallet(&bw); err != nil {
		return err
	}
	if err := batch.SaveWallet(&sw); err != nil {
		return err
	}
	if err := batch.SaveOrder(buy); err != nil {
		return err
	}
	if err := batch.SaveOrder(sell); err != nil {
		return err
	}
	if err := batch.SaveTrade(trade); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf("settlement commit: %w", err)
	}

	*sellerPos, *buyerPos = sp, bp
	*buyerWal, *sellerWal = bw, sw
	return nil
}

// Wallet returns a copy of an investor's wallet (zero-valued if never funded).
func (l *Ledger) Wallet(investorID string) Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.walletLocked(investorID)
}

// Position returns a copy of one holding (zero-valued if none).
func (l *Ledger) Position(investorID, propertyID string) Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.positionLocked(investorID, propertyID)
}

// Positions returns copies of all of an investor's holdings.
func (l *Ledger) Positions(investorID string) ([]Position, error) {
	stored, err := l.store.LoadPositions(investorID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(stored))
	for _, p := range stored {
		// Prefer the cached copy; it may be newer than the store under a
		// concurrent write-through.
		if cached, ok := l.positions[posKey{p.InvestorID, p.PropertyID}]; ok {
			out = append(out, *cached)
		} else {
			out = append(out, *p)
		}
	}
	return out, nil
}

// SaveOrder persists an order outside a settlement batch (submit, rest,
// cancel).
func (l *Ledger) SaveOrder(o *book.Order) error {
	return l.store.SaveOrder(o)
}

// Orders returns all orders of one investor, any status.
func (l *Ledger) Orders(investorID string) ([]*book.Order, error) {
	return l.store.LoadOrders(investorID)
}

// AllOrders returns every persisted order for book rebuild at startup.
func (l *Ledger) AllOrders() ([]*book.Order, error) {
	return l.store.LoadAllOrders()
}

// RecentTrades returns up to limit settled trades, newest first.
func (l *Ledger) RecentTrades(propertyID string, limit int) ([]*Trade, error) {
	return l.store.LoadRecentTrades(propertyID, limit)
}
