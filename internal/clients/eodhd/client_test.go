package eodhd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/sources"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fundamentalsJSON = `{
	"General": {"Code": "ABC", "Name": "ABC Industries", "CurrencyCode": "INR"},
	"SharesStats": {"SharesOutstanding": 20000000},
	"Earnings": {"History": {
		"2026-03-31": {"date": "2026-03-31", "epsActual": 6.1},
		"2026-06-30": {"date": "2026-06-30", "epsActual": null}
	}},
	"Financials": {"Income_Statement": {"currency_symbol": "INR", "quarterly": {
		"2026-06-30": {"date": "2026-06-30", "totalRevenue": "1300000000.00", "ebitda": 250000000, "netIncome": "130000000.00"},
		"2026-03-31": {"date": "2026-03-31", "totalRevenue": "1200000000.00", "ebitda": null, "netIncome": "122000000.00"}
	}}}
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewAdapter(NewClient("test-key", zerolog.Nop(), WithBaseURL(server.URL)))
}

func TestTicker(t *testing.T) {
	assert.Equal(t, "INFY.NSE", Ticker(domain.Entity{Exchange: "nse", Symbol: "infy"}))
	assert.Equal(t, "500209.BSE", Ticker(domain.Entity{Exchange: "BSE", Symbol: "500209"}))
}

func TestAdapter_Fundamentals(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fundamentals/ABC.NSE", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fundamentalsJSON))
	})

	payload, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetQuarterly)
	require.NoError(t, err)

	assert.Equal(t, Name, payload.Source)
	assert.Equal(t, "rupee", payload.Unit)
	assert.Equal(t, "INR", payload.Currency)
	require.Len(t, payload.Periods, 2)

	// oldest first
	assert.Equal(t, "2026-03-31", payload.Periods[0].EndDate)
	assert.Equal(t, "1200000000.00", payload.Periods[0].Values[domain.ValueRevenue])
	assert.Equal(t, "", payload.Periods[0].Values[domain.ValueEBITDA])
	assert.Equal(t, "6.1", payload.Periods[0].Values[domain.ValueEPS])

	assert.Equal(t, "250000000", payload.Periods[1].Values[domain.ValueEBITDA])
	_, hasEPS := payload.Periods[1].Values[domain.ValueEPS]
	assert.False(t, hasEPS)
}

func TestAdapter_Splits(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/splits/ABC.NSE", r.URL.Path)
		w.Write([]byte(`[{"date": "2025-09-12", "split": "2.000000/1.000000"}]`))
	})

	payload, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetActions)
	require.NoError(t, err)
	require.Len(t, payload.Actions, 1)
	assert.Equal(t, domain.RawAction{Kind: "split", Date: "2025-09-12", Ratio: "2.000000/1.000000"}, payload.Actions[0])
}

func TestAdapter_Quote(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/real-time/ABC.NSE":
			w.Write([]byte(`{"code": "ABC.NSE", "timestamp": 1784000000, "close": 150.5, "previousClose": 149}`))
		case "/fundamentals/ABC.NSE":
			w.Write([]byte(fundamentalsJSON))
		default:
			http.NotFound(w, r)
		}
	})

	payload, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetPrice)
	require.NoError(t, err)
	require.NotNil(t, payload.Quote)
	assert.Equal(t, 150.5, payload.Quote.Price)
	assert.Equal(t, 20000000.0, payload.Quote.Shares)
	assert.Equal(t, int64(1784000000), payload.Quote.AsOf.Unix())
}

func TestAdapter_QuoteFallsBackToPreviousClose(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/real-time/ABC.NSE":
			w.Write([]byte(`{"code": "ABC.NSE", "timestamp": "NA", "close": "NA", "previousClose": 149}`))
		default:
			w.Write([]byte(fundamentalsJSON))
		}
	})

	payload, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetPrice)
	require.NoError(t, err)
	assert.Equal(t, 149.0, payload.Quote.Price)
}

func TestAdapter_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected domain.UnavailableReason
	}{
		{"not found", http.StatusNotFound, "Ticker Not Found.", domain.ReasonNotFound},
		{"rate limited", http.StatusTooManyRequests, "", domain.ReasonRateLimited},
		{"server error", http.StatusBadGateway, "", domain.ReasonNetworkError},
		{"garbage body", http.StatusOK, "<html>", domain.ReasonMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetQuarterly)
			require.Error(t, err)

			var unavailable *sources.Unavailable
			require.True(t, errors.As(err, &unavailable))
			assert.Equal(t, Name, unavailable.Source)
			assert.Equal(t, tt.expected, unavailable.Reason)
		})
	}
}

func TestAdapter_MissingIncomeStatementIsNotFound(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"General": {"Code": "ABC"}}`))
	})

	_, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetQuarterly)

	var unavailable *sources.Unavailable
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, domain.ReasonNotFound, unavailable.Reason)
}

func TestAdapter_Supports(t *testing.T) {
	adapter := NewAdapter(NewClient("", zerolog.Nop()))
	assert.True(t, adapter.Supports(domain.FieldSetQuarterly))
	assert.True(t, adapter.Supports(domain.FieldSetActions))
	assert.True(t, adapter.Supports(domain.FieldSetPrice))
	assert.False(t, adapter.Supports(domain.FieldSetGovernance))
}
