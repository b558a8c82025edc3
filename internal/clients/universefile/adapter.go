// Package universefile serves the listing universe from a local CSV file. It
// is the fallback when the exchange listing cannot be fetched.
package universefile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
)

// Name identifies the file source in source attempts and cache entries
const Name = "universe-file"

// Recognized header columns. exchange and symbol are required.
const (
	colExchange  = "exchange"
	colSymbol    = "symbol"
	colName      = "name"
	colSector    = "sector"
	colISIN      = "isin"
	colMarketCap = "market_cap"
)

// Adapter reads the universe from a CSV file with a header row
type Adapter struct {
	path string
}

// NewAdapter creates a file universe adapter
func NewAdapter(path string) *Adapter {
	return &Adapter{path: path}
}

// Name returns the source name
func (a *Adapter) Name() string {
	return Name
}

// Supports reports the field sets the file can serve
func (a *Adapter) Supports(fs domain.FieldSet) bool {
	return fs == domain.FieldSetUniverse
}

// Fetch reads the universe file
func (a *Adapter) Fetch(ctx context.Context, _ domain.Entity, fs domain.FieldSet) (*domain.RawPayload, error) {
	if fs != domain.FieldSetUniverse {
		return nil, sources.NewUnavailable(Name, domain.ReasonUnsupported, fmt.Errorf("field set %s", fs))
	}
	if a.path == "" {
		return nil, sources.NewUnavailable(Name, domain.ReasonNotFound, errors.New("no universe file configured"))
	}

	f, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, sources.NewUnavailable(Name, domain.ReasonNotFound, err)
		}
		return nil, sources.NewUnavailable(Name, domain.ReasonNetworkError, err)
	}
	defer f.Close()

	listings, err := readListings(ctx, f)
	if err != nil {
		return nil, sources.NewUnavailable(Name, domain.ReasonMalformedResponse, fmt.Errorf("%s: %w", a.path, err))
	}

	return &domain.RawPayload{Source: Name, Listings: listings}, nil
}

func readListings(ctx context.Context, r io.Reader) ([]domain.RawListing, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{colExchange, colSymbol} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var listings []domain.RawListing
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		listing := domain.RawListing{
			Exchange: field(row, colExchange),
			Symbol:   field(row, colSymbol),
			Name:     field(row, colName),
			Sector:   field(row, colSector),
			ISIN:     field(row, colISIN),
		}
		if listing.Exchange == "" || listing.Symbol == "" {
			continue
		}
		if capText := strings.ReplaceAll(field(row, colMarketCap), ",", ""); capText != "" {
			marketCap, err := strconv.ParseFloat(capText, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: market cap %q: %w", line, capText, err)
			}
			listing.MarketCapRupee = marketCap
		}
		listings = append(listings, listing)
	}

	if len(listings) == 0 {
		return nil, errors.New("no listings")
	}
	return listings, nil
}
