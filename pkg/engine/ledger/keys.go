package ledger

import "fmt"

// Pebble key schema. Prefix-based so ownership and history queries are range
// scans; trade keys embed a zero-padded timestamp for lexicographic ordering.
const (
	prefixWallet   = "wal:"
	prefixPosition = "pos:"
	prefixOrder    = "ord:"
	prefixTrade    = "trd:"
)

// walletKey: "wal:{investorID}"
func walletKey(investorID string) []byte {
	return []byte(prefixWallet + investorID)
}

// positionKey: "pos:{investorID}:{propertyID}"
func positionKey(investorID, propertyID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixPosition, investorID, propertyID))
}

// positionPrefix: all positions of one investor.
func positionPrefix(investorID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixPosition, investorID))
}

// orderKey: "ord:{investorID}:{orderID}"
func orderKey(investorID, orderID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixOrder, investorID, orderID))
}

// orderPrefix: all orders of one investor.
func orderPrefix(investorID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixOrder, investorID))
}

// orderPrefixAll: every order, used to rebuild books at startup.
func orderPrefixAll() []byte {
	return []byte(prefixOrder)
}

// tradeKey: "trd:{propertyID}:{timestamp:020d}:{tradeID}"
func tradeKey(propertyID string, executedAt int64, tradeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", prefixTrade, propertyID, executedAt, tradeID))
}

// tradePrefix: all trades of one property, oldest first.
func tradePrefix(propertyID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixTrade, propertyID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
