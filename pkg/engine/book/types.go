package book

import "fmt"

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// SideFromString parses the wire representation used by the client RPC.
func SideFromString(s string) (Side, error) {
	switch s {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("invalid order side %q", s)
	}
}

// Status is the lifecycle state of an order.
type Status int8

const (
	Open Status = iota
	PartiallyFilled
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Order is an investor's intent to buy or sell property shares at a limit
// price. Price is in currency minor units (cents); CreatedAt (Unix ms) is the
// time-priority key, with Seq breaking same-millisecond ties in acceptance
// order. Only the matching engine mutates Filled and Status.
type Order struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	InvestorID string `json:"investorId"`
	Side       Side   `json:"side"`
	Shares     int64  `json:"shares"`
	Filled     int64  `json:"filled"`
	Price      int64  `json:"price"`
	Status     Status `json:"status"`
	Seq        int64  `json:"seq"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// Remaining returns the unfilled share count.
func (o *Order) Remaining() int64 {
	return o.Shares - o.Filled
}

// Terminal reports whether the order can never match again.
func (o *Order) Terminal() bool {
	return o.Status == Filled || o.Status == Cancelled
}

// Fill is one matched quantity between a taker and a resting maker. Price is
// always the maker's limit price.
type Fill struct {
	Taker  *Order
	Maker  *Order
	Price  int64
	Shares int64
}

// BuyOrder returns the buy-side order of the fill.
func (f Fill) BuyOrder() *Order {
	if f.Taker.Side == Buy {
		return f.Taker
	}
	return f.Maker
}

// SellOrder returns the sell-side order of the fill.
func (f Fill) SellOrder() *Order {
	if f.Taker.Side == Sell {
		return f.Taker
	}
	return f.Maker
}

// PriceLevel aggregates resting shares at one price.
type PriceLevel struct {
	Price  int64
	Shares int64
}
