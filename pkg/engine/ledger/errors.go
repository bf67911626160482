package ledger

import "errors"

var (
	// ErrInsufficientFunds rejects a buy order whose notional exceeds the
	// investor's available (uncommitted) funds. Client-fixable.
	ErrInsufficientFunds = errors.New("insufficient available funds")

	// ErrInsufficientShares rejects a sell order for more shares than the
	// investor's available (uncommitted) holding. Client-fixable.
	ErrInsufficientShares = errors.New("insufficient available shares")

	// ErrInvariantViolation indicates committed funds/shares or ledger state
	// went inconsistent. Internal defect: the enclosing operation aborts
	// whole and the error surfaces as a server fault, never a user error.
	ErrInvariantViolation = errors.New("ledger invariant violation")
)
