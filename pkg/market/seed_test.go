package market

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `
listings:
  - propertyId: "prop-berlin-01"
    name: "Friedrichstrasse 120, Berlin"
    totalShares: 10000
    minOrderShares: 1
  - propertyId: "prop-lisbon-02"
    name: "Rua Augusta 45, Lisbon"
    totalShares: 25000
    minOrderShares: 5
    maxOrderShares: 5000
`)

	reg := NewRegistry()
	n, err := LoadSeed(path, reg)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, reg.Count())

	l, err := reg.Get("prop-lisbon-02")
	require.NoError(t, err)
	require.Equal(t, int64(25000), l.TotalShares)
	require.Equal(t, int64(5), l.MinOrderShares)
	require.Equal(t, Active, l.Status)
}

func TestLoadSeedRejectsBadFiles(t *testing.T) {
	reg := NewRegistry()

	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"), reg)
	require.Error(t, err)

	_, err = LoadSeed(writeSeed(t, "listings: []"), reg)
	require.Error(t, err)

	_, err = LoadSeed(writeSeed(t, `
listings:
  - propertyId: "prop-1"
    name: "No shares"
    totalShares: 0
`), reg)
	require.Error(t, err)
}
