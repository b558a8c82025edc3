package universefile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "universe.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestAdapter_ReadsListings(t *testing.T) {
	path := writeFile(t, "\ufeffSymbol,Exchange,Name,Sector,ISIN,Market_Cap\n"+
		"ABC,NSE,ABC Industries,Chemicals,INE000A01010,\"30,000,000,000\"\n"+
		",NSE,Blank,,,\n"+
		"XYZ,BSE,XYZ Ltd,,,\n")

	payload, err := NewAdapter(path).Fetch(context.Background(), domain.UniverseEntity, domain.FieldSetUniverse)
	require.NoError(t, err)
	require.Len(t, payload.Listings, 2)

	assert.Equal(t, domain.RawListing{
		Exchange:       "NSE",
		Symbol:         "ABC",
		Name:           "ABC Industries",
		Sector:         "Chemicals",
		ISIN:           "INE000A01010",
		MarketCapRupee: 3e10,
	}, payload.Listings[0])
	assert.Equal(t, 0.0, payload.Listings[1].MarketCapRupee)
}

func TestAdapter_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected domain.UnavailableReason
	}{
		{"no path", "", domain.ReasonNotFound},
		{"missing file", filepath.Join(t.TempDir(), "nope.csv"), domain.ReasonNotFound},
		{"missing column", writeFile(t, "ticker,name\nABC,ABC\n"), domain.ReasonMalformedResponse},
		{"bad market cap", writeFile(t, "exchange,symbol,market_cap\nNSE,ABC,lots\n"), domain.ReasonMalformedResponse},
		{"header only", writeFile(t, "exchange,symbol\n"), domain.ReasonMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.path).Fetch(context.Background(), domain.UniverseEntity, domain.FieldSetUniverse)

			var unavailable *sources.Unavailable
			require.True(t, errors.As(err, &unavailable))
			assert.Equal(t, tt.expected, unavailable.Reason)
		})
	}
}

func TestAdapter_Supports(t *testing.T) {
	adapter := NewAdapter("x.csv")
	assert.True(t, adapter.Supports(domain.FieldSetUniverse))
	assert.False(t, adapter.Supports(domain.FieldSetPrice))
}
