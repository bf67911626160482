package market

import "fmt"

// ListingStatus is the trading status of a property listing.
type ListingStatus int8

const (
	Active ListingStatus = iota
	Paused
	Delisted
)

func (s ListingStatus) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	case Delisted:
		return "delisted"
	default:
		return "unknown"
	}
}

// Listing describes one tradable property share class. Each property is held
// by an SPV; the share registry collaborator issues the shares, this service
// only trades them on the secondary market.
type Listing struct {
	PropertyID string `yaml:"propertyId"`
	Name       string `yaml:"name"`

	// TotalShares is the fixed share count issued for the property. Matching
	// conserves this sum; it exists for sanity checks and display.
	TotalShares int64 `yaml:"totalShares"`

	// Per-order share bounds. MaxOrderShares == 0 means no upper bound.
	MinOrderShares int64 `yaml:"minOrderShares"`
	MaxOrderShares int64 `yaml:"maxOrderShares"`

	Status ListingStatus `yaml:"-"`
}

// NewListing validates and constructs a listing in Active status.
func NewListing(propertyID, name string, totalShares, minOrder, maxOrder int64) (*Listing, error) {
	if propertyID == "" {
		return nil, fmt.Errorf("listing requires a property id")
	}
	if totalShares <= 0 {
		return nil, fmt.Errorf("listing %s: total shares must be positive, got %d", propertyID, totalShares)
	}
	if minOrder < 1 {
		minOrder = 1
	}
	if maxOrder != 0 && maxOrder < minOrder {
		return nil, fmt.Errorf("listing %s: max order %d below min order %d", propertyID, maxOrder, minOrder)
	}
	return &Listing{
		PropertyID:     propertyID,
		Name:           name,
		TotalShares:    totalShares,
		MinOrderShares: minOrder,
		MaxOrderShares: maxOrder,
		Status:         Active,
	}, nil
}

// ValidateOrder gates an incoming order against listing parameters.
func (l *Listing) ValidateOrder(price, shares int64) error {
	if l.Status != Active {
		return fmt.Errorf("listing %s is %s", l.PropertyID, l.Status)
	}
	if price <= 0 {
		return fmt.Errorf("price must be positive, got %d", price)
	}
	if shares <= 0 {
		return fmt.Errorf("shares must be positive, got %d", shares)
	}
	if shares < l.MinOrderShares {
		return fmt.Errorf("order of %d shares below listing minimum %d", shares, l.MinOrderShares)
	}
	if l.MaxOrderShares != 0 && shares > l.MaxOrderShares {
		return fmt.Errorf("order of %d shares above listing maximum %d", shares, l.MaxOrderShares)
	}
	if shares > l.TotalShares {
		return fmt.Errorf("order of %d shares exceeds issued supply %d", shares, l.TotalShares)
	}
	return nil
}
