package ledger

import "fmt"

// Wallet tracks an investor's cash in currency minor units (cents).
// CommittedFunds is the portion reserved by open buy orders; it is released
// only by a fill or a cancellation.
type Wallet struct {
	InvestorID     string `json:"investorId"`
	Balance        int64  `json:"balance"`
	CommittedFunds int64  `json:"committedFunds"`
}

// Available returns funds not reserved by open buy orders.
func (w *Wallet) Available() int64 {
	return w.Balance - w.CommittedFunds
}

// Validate checks wallet invariants.
func (w *Wallet) Validate() error {
	if w.Balance < 0 {
		return fmt.Errorf("wallet %s: negative balance %d", w.InvestorID, w.Balance)
	}
	if w.CommittedFunds < 0 {
		return fmt.Errorf("wallet %s: negative committed funds %d", w.InvestorID, w.CommittedFunds)
	}
	if w.CommittedFunds > w.Balance {
		return fmt.Errorf("wallet %s: committed funds %d exceed balance %d", w.InvestorID, w.CommittedFunds, w.Balance)
	}
	return nil
}

// Position tracks an investor's share holding in one property.
// CommittedShares is the portion reserved by open sell orders.
type Position struct {
	InvestorID      string `json:"investorId"`
	PropertyID      string `json:"propertyId"`
	OwnedShares     int64  `json:"ownedShares"`
	CommittedShares int64  `json:"committedShares"`
}

// Available returns shares not reserved by open sell orders.
func (p *Position) Available() int64 {
	return p.OwnedShares - p.CommittedShares
}

// Validate checks position invariants.
func (p *Position) Validate() error {
	if p.OwnedShares < 0 {
		return fmt.Errorf("position %s/%s: negative owned shares %d", p.InvestorID, p.PropertyID, p.OwnedShares)
	}
	if p.CommittedShares < 0 {
		return fmt.Errorf("position %s/%s: negative committed shares %d", p.InvestorID, p.PropertyID, p.CommittedShares)
	}
	if p.CommittedShares > p.OwnedShares {
		return fmt.Errorf("position %s/%s: committed shares %d exceed owned %d", p.InvestorID, p.PropertyID, p.CommittedShares, p.OwnedShares)
	}
	return nil
}

// Trade is one settled match. Price is the maker's limit price in cents.
// Trades are append-only: created once by settlement, never mutated.
type Trade struct {
	ID          string `json:"id"`
	PropertyID  string `json:"propertyId"`
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId"`
	BuyerID     string `json:"buyerId"`
	SellerID    string `json:"sellerId"`
	Shares      int64  `json:"shares"`
	Price       int64  `json:"price"`
	ExecutedAt  int64  `json:"executedAt"` // Unix milliseconds
}

// Notional returns the cash value of the trade in cents.
func (t *Trade) Notional() int64 {
	return t.Shares * t.Price
}
