package trendlyne

import (
	"context"
	"encoding/json"
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

const resultsJSON = `{"body": {
	"quarterlyOrder": ["Jun 2026", "Mar 2026", "Dec 2025"],
	"quarterlyDataDump": {
		"standalone": {"Jun 2026": {"SR_Q": 90}},
		"consolidated": {
			"Jun 2026": {"TOTAL_SR_Q": 130.5, "NP_Q": "13.2", "EPS_Q": 6.6},
			"Mar 2026": {"TOTAL_SR_Q": "1,210.00", "NP_Q": null},
			"Dec 2025": {"SR_Q": 110, "NP_Q": 11}
		},
		"meta": "ignored"
	}
}}`

func newTestServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/member/api/ac_snames/all/":
			assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
			assert.Equal(t, "true", r.URL.Query().Get("all-results"))
			json.NewEncoder(w).Encode([]SearchItem{
				{Label: "ABC Other", Value: "ABC2", NSECode: "ABC2", NextURL: "/equity/2/ABC2/"},
				{Label: "ABC Industries", Value: "ABC Industries", NSECode: "ABC", NextURL: "/equity/1/ABC/abc-industries/"},
			})
		case "/equity/1/ABC/abc-industries/":
			w.Write([]byte(page))
		case "/fundamentals/get-fundamental_results/ABC/":
			assert.Contains(t, r.Header.Get("Referer"), "/equity/1/ABC/")
			w.Write([]byte(resultsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAdapter_Quarterly(t *testing.T) {
	server := newTestServer(t, `<html><div id="results" data-tablesurl="/fundamentals/get-fundamental_results/ABC/"></div></html>`)
	adapter := NewAdapter(NewClient(zerolog.Nop(), WithBaseURL(server.URL)))

	payload, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetQuarterly)
	require.NoError(t, err)

	assert.Equal(t, "crore", payload.Unit)
	require.Len(t, payload.Periods, 3)

	// reversed to oldest first
	assert.Equal(t, "Dec 2025", payload.Periods[0].Label)
	assert.Equal(t, "110", payload.Periods[0].Values[domain.ValueRevenue])

	assert.Equal(t, "1,210.00", payload.Periods[1].Values[domain.ValueRevenue])
	assert.Equal(t, "", payload.Periods[1].Values[domain.ValuePAT])

	assert.Equal(t, "Jun 2026", payload.Periods[2].Label)
	assert.Equal(t, "130.5", payload.Periods[2].Values[domain.ValueRevenue])
	assert.Equal(t, "13.2", payload.Periods[2].Values[domain.ValuePAT])
	assert.Equal(t, "6.6", payload.Periods[2].Values[domain.ValueEPS])
}

func TestClient_FundamentalsURLRegexFallback(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<script>var u = "` + server.URL + `/fundamentals/get-fundamental_results/ABC";</script>`))
	}))
	defer server.Close()

	client := NewClient(zerolog.Nop(), WithBaseURL(server.URL))
	u, err := client.FundamentalsURL(context.Background(), "/equity/1/ABC/")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/fundamentals/get-fundamental_results/ABC/", u)
}

func TestAdapter_MissingEndpointIsMalformed(t *testing.T) {
	server := newTestServer(t, `<html><body>nothing here</body></html>`)
	adapter := NewAdapter(NewClient(zerolog.Nop(), WithBaseURL(server.URL)))

	_, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ABC"}, domain.FieldSetQuarterly)

	var unavailable *sources.Unavailable
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, domain.ReasonMalformedResponse, unavailable.Reason)
}

func TestAdapter_UnknownCompanyIsNotFound(t *testing.T) {
	server := newTestServer(t, "")
	adapter := NewAdapter(NewClient(zerolog.Nop(), WithBaseURL(server.URL)))

	_, err := adapter.Fetch(context.Background(), domain.Entity{Exchange: "NSE", Symbol: "ZZZ"}, domain.FieldSetQuarterly)

	var unavailable *sources.Unavailable
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, domain.ReasonNotFound, unavailable.Reason)
}

func TestChooseDump_PrefersCoverageThenConsolidated(t *testing.T) {
	dumps := map[string]json.RawMessage{
		"standalone":   json.RawMessage(`{"Q1": {}, "Q2": {}}`),
		"consolidated": json.RawMessage(`{"Q1": {}, "Q2": {}}`),
		"other":        json.RawMessage(`{"Q1": {}, "Q2": {}, "Q3": {}}`),
	}

	best := chooseDump(dumps, []string{"Q1", "Q2", "Q3"})
	assert.Len(t, best, 3)

	delete(dumps, "other")
	best = chooseDump(dumps, []string{"Q1", "Q2", "Q3"})
	require.NotNil(t, best)
	assert.Len(t, best, 2)
}
