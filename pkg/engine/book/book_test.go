package book

import (
	"fmt"
	"testing"
)

var orderSeq int64

func newOrder(investor string, side Side, price, shares, createdAt int64) *Order {
	orderSeq++
	return &Order{
		ID:         fmt.Sprintf("ord-%d", orderSeq),
		PropertyID: "prop-1",
		InvestorID: investor,
		Side:       side,
		Shares:     shares,
		Price:      price,
		Status:     Open,
		CreatedAt:  createdAt,
	}
}

func mustMatch(t *testing.T, b *Book, o *Order) []Fill {
	t.Helper()
	fills, err := b.Match(o, nil)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	return fills
}

func TestMatchFullCross(t *testing.T) {
	b := New("prop-1")

	sell := newOrder("alice", Sell, 10000, 10, 1)
	mustMatch(t, b, sell) // rests

	buy := newOrder("bob", Buy, 10000, 10, 2)
	fills := mustMatch(t, b, buy)

	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	f := fills[0]
	if f.Price != 10000 || f.Shares != 10 {
		t.Errorf("fill = %+v, want price=10000 shares=10", f)
	}
	if sell.Status != Filled || buy.Status != Filled {
		t.Errorf("statuses = %s/%s, want filled/filled", sell.Status, buy.Status)
	}
	if b.Resting(sell.ID) || b.Resting(buy.ID) {
		t.Error("filled orders must not rest")
	}
	if b.LastPrice() != 10000 {
		t.Errorf("last price = %d, want 10000", b.LastPrice())
	}
}

func TestNoCrossRests(t *testing.T) {
	b := New("prop-1")

	sell := newOrder("alice", Sell, 11000, 5, 1)
	mustMatch(t, b, sell)

	buy := newOrder("bob", Buy, 10000, 5, 2)
	fills := mustMatch(t, b, buy)

	if len(fills) != 0 {
		t.Fatalf("fills = %d, want 0", len(fills))
	}
	if !b.Resting(buy.ID) {
		t.Error("non-crossing buy must rest")
	}
	bid, ok := b.BestBid()
	if !ok || bid != 10000 {
		t.Errorf("best bid = %d/%v, want 10000/true", bid, ok)
	}
	ask, ok := b.BestAsk()
	if !ok || ask != 11000 {
		t.Errorf("best ask = %d/%v, want 11000/true", ask, ok)
	}
}

func TestMakerPriceWins(t *testing.T) {
	b := New("prop-1")

	// Resting ask at 100.00; aggressive buy limit at 105.00.
	mustMatch(t, b, newOrder("alice", Sell, 10000, 5, 1))
	buy := newOrder("bob", Buy, 10500, 5, 2)
	fills := mustMatch(t, b, buy)

	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	if fills[0].Price != 10000 {
		t.Errorf("fill price = %d, want maker price 10000", fills[0].Price)
	}
}

func TestTimePriorityWithinLevel(t *testing.T) {
	b := New("prop-1")

	first := newOrder("alice", Sell, 10000, 5, 1)
	second := newOrder("carol", Sell, 10000, 5, 2)
	mustMatch(t, b, first)
	mustMatch(t, b, second)

	buy := newOrder("bob", Buy, 10000, 5, 3)
	fills := mustMatch(t, b, buy)

	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	if fills[0].Maker != first {
		t.Error("earlier order at same price must fill first")
	}
	if first.Status != Filled || second.Status != Open {
		t.Errorf("statuses = %s/%s, want filled/open", first.Status, second.Status)
	}
}

func TestPricePriorityAcrossLevels(t *testing.T) {
	b := New("prop-1")

	cheap := newOrder("alice", Sell, 9900, 5, 2)
	expensive := newOrder("carol", Sell, 10000, 5, 1)
	mustMatch(t, b, expensive)
	mustMatch(t, b, cheap)

	buy := newOrder("bob", Buy, 10000, 8, 3)
	fills := mustMatch(t, b, buy)

	if len(fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(fills))
	}
	if fills[0].Maker != cheap || fills[0].Price != 9900 || fills[0].Shares != 5 {
		t.Errorf("first fill = %+v, want cheap ask first", fills[0])
	}
	if fills[1].Maker != expensive || fills[1].Price != 10000 || fills[1].Shares != 3 {
		t.Errorf("second fill = %+v, want 3 shares at 10000", fills[1])
	}
	if buy.Status != Filled {
		t.Errorf("buy status = %s, want filled", buy.Status)
	}
	if expensive.Remaining() != 2 || expensive.Status != PartiallyFilled {
		t.Errorf("expensive remaining = %d status = %s", expensive.Remaining(), expensive.Status)
	}
}

func TestPartialFillRemainderRests(t *testing.T) {
	b := New("prop-1")

	mustMatch(t, b, newOrder("alice", Sell, 10000, 8, 1))
	buy := newOrder("bob", Buy, 10500, 10, 2)
	fills := mustMatch(t, b, buy)

	var filled int64
	for _, f := range fills {
		filled += f.Shares
	}
	if filled != 8 {
		t.Errorf("filled = %d, want 8", filled)
	}
	if buy.Remaining() != 2 || buy.Status != PartiallyFilled {
		t.Errorf("buy remaining = %d status = %s, want 2/partially_filled", buy.Remaining(), buy.Status)
	}
	if !b.Resting(buy.ID) {
		t.Error("remainder must rest")
	}
	bid, ok := b.BestBid()
	if !ok || bid != 10500 {
		t.Errorf("best bid = %d/%v, want 10500 (remainder at taker limit)", bid, ok)
	}
}

func TestSelfTradeSkipsOwnOrders(t *testing.T) {
	b := New("prop-1")

	own := newOrder("alice", Sell, 10000, 5, 1)
	other := newOrder("carol", Sell, 10000, 5, 2)
	mustMatch(t, b, own)
	mustMatch(t, b, other)

	// Alice's buy crosses her own ask, which must be skipped; carol's later
	// ask at the same level fills instead.
	buy := newOrder("alice", Buy, 10000, 5, 3)
	fills := mustMatch(t, b, buy)

	if len(fills) != 1 {
		t.Fatalf("fills = %d, want 1", len(fills))
	}
	if fills[0].Maker != other {
		t.Error("own resting order must be skipped, not matched")
	}
	if own.Status != Open || own.Remaining() != 5 {
		t.Errorf("own order touched: status=%s remaining=%d", own.Status, own.Remaining())
	}
}

func TestSelfTradeOnlyOwnLiquidityRests(t *testing.T) {
	b := New("prop-1")

	own := newOrder("alice", Sell, 10000, 5, 1)
	mustMatch(t, b, own)

	buy := newOrder("alice", Buy, 10000, 5, 2)
	fills := mustMatch(t, b, buy)

	if len(fills) != 0 {
		t.Fatalf("fills = %d, want 0 (only own liquidity)", len(fills))
	}
	// Both orders rest; the book is crossed only against the same investor.
	if !b.Resting(own.ID) || !b.Resting(buy.ID) {
		t.Error("both own orders should rest")
	}
}

func TestCancelRemovesRestingOrder(t *testing.T) {
	b := New("prop-1")

	o := newOrder("alice", Sell, 10000, 5, 1)
	mustMatch(t, b, o)

	if !b.Cancel(o.ID) {
		t.Fatal("cancel of resting order failed")
	}
	if b.Resting(o.ID) {
		t.Error("cancelled order still resting")
	}
	if _, ok := b.BestAsk(); ok {
		t.Error("ask level should be gone")
	}
	if b.Cancel(o.ID) {
		t.Error("second cancel should report not resting")
	}
}

func TestOnFillErrorRollsBackCounters(t *testing.T) {
	b := New("prop-1")

	maker := newOrder("alice", Sell, 10000, 10, 1)
	mustMatch(t, b, maker)

	taker := newOrder("bob", Buy, 10000, 10, 2)
	sentinel := errTest("settlement refused")
	fills, err := b.Match(taker, func(Fill) error { return sentinel })

	if err != sentinel {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if len(fills) != 0 {
		t.Errorf("fills = %d, want 0", len(fills))
	}
	if maker.Filled != 0 || taker.Filled != 0 {
		t.Errorf("counters not rolled back: maker=%d taker=%d", maker.Filled, taker.Filled)
	}
	if maker.Status != Open || taker.Status != Open {
		t.Errorf("statuses not rolled back: %s/%s", maker.Status, taker.Status)
	}
	if !b.Resting(maker.ID) {
		t.Error("maker must still rest after failed settlement")
	}
	if b.Resting(taker.ID) {
		t.Error("taker must not rest after failed settlement")
	}
}

func TestLevelAggregation(t *testing.T) {
	b := New("prop-1")

	mustMatch(t, b, newOrder("alice", Sell, 10000, 5, 1))
	mustMatch(t, b, newOrder("carol", Sell, 10000, 7, 2))
	mustMatch(t, b, newOrder("dave", Sell, 10100, 3, 3))
	mustMatch(t, b, newOrder("bob", Buy, 9900, 4, 4))

	asks := b.AskLevels()
	if len(asks) != 2 {
		t.Fatalf("ask levels = %d, want 2", len(asks))
	}
	if asks[0].Price != 10000 || asks[0].Shares != 12 {
		t.Errorf("best ask level = %+v, want 10000/12", asks[0])
	}
	if asks[1].Price != 10100 || asks[1].Shares != 3 {
		t.Errorf("second ask level = %+v, want 10100/3", asks[1])
	}

	bids := b.BidLevels()
	if len(bids) != 1 || bids[0].Price != 9900 || bids[0].Shares != 4 {
		t.Errorf("bid levels = %+v, want one 9900/4", bids)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
