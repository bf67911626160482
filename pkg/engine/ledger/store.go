package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/fracshare/marketd/pkg/engine/book"
)

// Store is the Pebble persistence layer for wallets, positions, orders, and
// the settled-trade log. Thread safety comes from the Ledger's mutex; the
// store itself only serializes through Pebble.
type Store struct {
	db *pebble.DB
}

func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		L0StopWritesThreshold: 12,
		MaxOpenFiles:          500,
		BytesPerSync:          512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveWallet(w *Wallet) error {
	return s.set(walletKey(w.InvestorID), w, "wallet")
}

// LoadWallet returns nil if the wallet does not exist.
func (s *Store) LoadWallet(investorID string) (*Wallet, error) {
	var w Wallet
	ok, err := s.get(walletKey(investorID), &w)
	if err != nil || !ok {
		return nil, err
	}
	return &w, nil
}

func (s *Store) SavePosition(p *Position) error {
	return s.set(positionKey(p.InvestorID, p.PropertyID), p, "position")
}

// LoadPosition returns nil if the position does not exist.
func (s *Store) LoadPosition(investorID, propertyID string) (*Position, error) {
	var p Position
	ok, err := s.get(positionKey(investorID, propertyID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// LoadPositions returns all positions held by one investor.
func (s *Store) LoadPositions(investorID string) ([]*Position, error) {
	prefix := positionPrefix(investorID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var positions []*Position
	for iter.First(); iter.Valid(); iter.Next() {
		var p Position
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, fmt.Errorf("corrupt position at %s: %w", iter.Key(), err)
		}
		positions = append(positions, &p)
	}
	return positions, nil
}

func (s *Store) SaveOrder(o *book.Order) error {
	return s.set(orderKey(o.InvestorID, o.ID), o, "order")
}

// LoadOrders returns all orders of one investor, any status.
func (s *Store) LoadOrders(investorID string) ([]*book.Order, error) {
	return s.scanOrders(orderPrefix(investorID))
}

// LoadAllOrders returns every persisted order; used to rebuild books.
func (s *Store) LoadAllOrders() ([]*book.Order, error) {
	return s.scanOrders(orderPrefixAll())
}

func (s *Store) scanOrders(prefix []byte) ([]*book.Order, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []*book.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o book.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			return nil, fmt.Errorf("corrupt order at %s: %w", iter.Key(), err)
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// LoadRecentTrades returns up to limit trades for a property, newest first.
func (s *Store) LoadRecentTrades(propertyID string, limit int) ([]*Trade, error) {
	prefix := tradePrefix(propertyID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var trades []*Trade
	for iter.Last(); iter.Valid() && len(trades) < limit; iter.Prev() {
		var t Trade
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			return nil, fmt.Errorf("corrupt trade at %s: %w", iter.Key(), err)
		}
		trades = append(trades, &t)
	}
	return trades, nil
}

func (s *Store) set(key []byte, v interface{}, what string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("save %s: %w", what, err)
	}
	return nil
}

func (s *Store) get(key []byte, v interface{}) (bool, error) {
	data, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Batch groups settlement writes so wallets, positions, both orders, and the
// trade record commit atomically.
type Batch struct {
	batch *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{batch: s.db.NewBatch()}
}

func (b *Batch) SaveWallet(w *Wallet) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return b.batch.Set(walletKey(w.InvestorID), data, nil)
}

func (b *Batch) SavePosition(p *Position) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return b.batch.Set(positionKey(p.InvestorID, p.PropertyID), data, nil)
}

func (b *Batch) SaveOrder(o *book.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return b.batch.Set(orderKey(o.InvestorID, o.ID), data, nil)
}

func (b *Batch) SaveTrade(t *Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.batch.Set(tradeKey(t.PropertyID, t.ExecutedAt, t.ID), data, nil)
}

// Commit writes the batch durably and atomically.
func (b *Batch) Commit() error {
	return b.batch.Commit(pebble.Sync)
}

// Close discards the batch without committing.
func (b *Batch) Close() error {
	return b.batch.Close()
}
