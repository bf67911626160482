package market

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Listings []seedListing `yaml:"listings"`
}

type seedListing struct {
	PropertyID     string `yaml:"propertyId"`
	Name           string `yaml:"name"`
	TotalShares    int64  `yaml:"totalShares"`
	MinOrderShares int64  `yaml:"minOrderShares"`
	MaxOrderShares int64  `yaml:"maxOrderShares"`
}

// LoadSeed reads property listings from a YAML seed file and registers them.
// Listings normally come from the property CRUD back office; the seed file
// stands in for that upstream until listings are pushed dynamically.
func LoadSeed(path string, reg *Registry) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read listings seed: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("parse listings seed %s: %w", path, err)
	}
	if len(f.Listings) == 0 {
		return 0, fmt.Errorf("listings seed %s contains no listings", path)
	}

	for _, s := range f.Listings {
		l, err := NewListing(s.PropertyID, s.Name, s.TotalShares, s.MinOrderShares, s.MaxOrderShares)
		if err != nil {
			return 0, err
		}
		if err := reg.Register(l); err != nil {
			return 0, err
		}
	}
	return len(f.Listings), nil
}
