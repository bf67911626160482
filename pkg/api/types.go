package api

// Request and response types for the REST endpoints and WebSocket feed.
// Prices cross this boundary as decimal strings ("105.00"); internally
// everything is integer cents.

// ListingInfo describes a tradable property listing.
type ListingInfo struct {
	PropertyID     string `json:"propertyId"`
	Name           string `json:"name"`
	TotalShares    int64  `json:"totalShares"`
	MinOrderShares int64  `json:"minOrderShares"`
	MaxOrderShares int64  `json:"maxOrderShares"`
	Status         string `json:"status"`
	LastPrice      string `json:"lastPrice,omitempty"`
}

// BookSnapshot is the aggregated depth of one property's book.
type BookSnapshot struct {
	PropertyID string       `json:"propertyId"`
	Bids       []PriceLevel `json:"bids"` // sorted high to low
	Asks       []PriceLevel `json:"asks"` // sorted low to high
	Timestamp  int64        `json:"timestamp"`
}

// PriceLevel is one aggregated book level.
type PriceLevel struct {
	Price  string `json:"price"`
	Shares int64  `json:"shares"`
}

// TradeInfo is one settled trade.
type TradeInfo struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	Price      string `json:"price"`
	Shares     int64  `json:"shares"`
	ExecutedAt int64  `json:"executedAt"`
}

// WalletInfo is an investor's cash balances.
type WalletInfo struct {
	InvestorID     string `json:"investorId"`
	Balance        string `json:"balance"`
	CommittedFunds string `json:"committedFunds"`
	Available      string `json:"available"`
}

// PositionInfo is an investor's holding in one property.
type PositionInfo struct {
	PropertyID      string `json:"propertyId"`
	OwnedShares     int64  `json:"ownedShares"`
	CommittedShares int64  `json:"committedShares"`
	AvailableShares int64  `json:"availableShares"`
}

// OrderInfo is an order in any status.
type OrderInfo struct {
	ID         string `json:"id"`
	PropertyID string `json:"propertyId"`
	Side       string `json:"side"`
	Price      string `json:"price"`
	Shares     int64  `json:"shares"`
	Filled     int64  `json:"filled"`
	Remaining  int64  `json:"remaining"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}

// SubmitOrderRequest is the payload for POST /api/v1/orders.
type SubmitOrderRequest struct {
	InvestorID string `json:"investorId"`
	PropertyID string `json:"propertyId"`
	Side       string `json:"side"`  // "buy" or "sell"
	Shares     int64  `json:"shares"`
	Price      string `json:"price"` // limit price, decimal string
}

// SubmitOrderResponse reports the accepted order and any immediate fills.
type SubmitOrderResponse struct {
	Order  OrderInfo   `json:"order"`
	Trades []TradeInfo `json:"trades"`
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrderRequest struct {
	InvestorID string `json:"investorId"`
	OrderID    string `json:"orderId"`
}

// DepositRequest credits investor funds (wallet service integration point).
type DepositRequest struct {
	Amount string `json:"amount"`
}

// GrantSharesRequest records primary issuance for an investor.
type GrantSharesRequest struct {
	PropertyID string `json:"propertyId"`
	Shares     int64  `json:"shares"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. ["book:prop-123", "trades:prop-123"].
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// BookUpdate is pushed on the book channel after any book mutation.
type BookUpdate struct {
	Type       string       `json:"type"` // "book"
	PropertyID string       `json:"propertyId"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	Timestamp  int64        `json:"timestamp"`
}

// TradeUpdate is pushed on the trades channel after each settlement.
type TradeUpdate struct {
	Type       string `json:"type"` // "trade"
	PropertyID string `json:"propertyId"`
	Price      string `json:"price"`
	Shares     int64  `json:"shares"`
	ExecutedAt int64  `json:"executedAt"`
}
