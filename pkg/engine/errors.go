package engine

import (
	"errors"

	"github.com/fracshare/marketd/pkg/engine/ledger"
)

var (
	// ErrInvalidOrder rejects malformed input: bad side, non-positive
	// shares or price, or a listing-level violation. Client-fixable.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrUnknownProperty rejects orders and queries for properties that are
	// not listed.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrOrderNotFound rejects cancellation of a nonexistent order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrForbidden rejects cancellation of another investor's order.
	ErrForbidden = errors.New("order belongs to another investor")

	// ErrAlreadyTerminal rejects cancellation of a filled or cancelled order.
	ErrAlreadyTerminal = errors.New("order already in a terminal state")
)

// Business-rule rejections surface from the ledger; re-exported so callers
// only need this package for the full taxonomy.
var (
	ErrInsufficientFunds  = ledger.ErrInsufficientFunds
	ErrInsufficientShares = ledger.ErrInsufficientShares
	ErrInvariantViolation = ledger.ErrInvariantViolation
)
