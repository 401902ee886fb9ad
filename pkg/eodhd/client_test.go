package eodhd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreen(t *testing.T) {
	var gotQuery map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screener", r.URL.Path)
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{"data":[
			{"code":"AAPL","adjusted_close":182.5,"avgvol_200d":55000000,"market_capitalization":2.8e12},
			{"code":"MSFT","adjusted_close":410.0,"avgvol_200d":22000000,"market_capitalization":3.1e12}
		]}`)
	}))
	defer ts.Close()

	c := NewClient("test-key", WithBaseURL(ts.URL))
	items, err := c.Screen(context.Background(), ScreenFilters{
		MinPrice:  20,
		MaxPrice:  500,
		MinVolume: 500000,
		Limit:     100,
	})
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "AAPL", items[0].Code)
	assert.Equal(t, 182.5, items[0].AdjustedClose)
	assert.Equal(t, int64(55000000), items[0].AvgVolume)

	assert.Equal(t, []string{"test-key"}, gotQuery["api_token"])
	assert.Equal(t, []string{"20"}, gotQuery["filters[price][gte]"])
	assert.Equal(t, []string{"500"}, gotQuery["filters[price][lte]"])
	assert.Equal(t, []string{"500000"}, gotQuery["filters[avgvol_200d][gte]"])
	assert.Equal(t, []string{"100"}, gotQuery["limit"])
}

func TestScreen_SymbolList(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL,MSFT", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL))
	_, err := c.Screen(context.Background(), ScreenFilters{Symbols: []string{"AAPL", "MSFT"}})
	require.NoError(t, err)
}

func TestQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/real-time/AAPL", r.URL.Path)
		fmt.Fprint(w, `{"code":"AAPL","close":182.5,"volume":4200000,"timestamp":1756645800}`)
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL))
	q, err := c.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 182.5, q.Close)
	assert.Equal(t, int64(4200000), q.Volume)
}

func TestOptions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/options/AAPL", r.URL.Path)
		fmt.Fprint(w, `{"code":"AAPL","lastTradePrice":182.5,"data":[
			{"contractName":"AAPL270115C00150000","type":"call","strike":150,"expirationDate":"2027-01-15","bid":38.1,"ask":39.0,"delta":0.85,"impliedVolatility":0.31,"openInterest":1200},
			{"contractName":"AAPL260918P00170000","type":"put","strike":170,"expirationDate":"2026-09-18","bid":2.1,"ask":2.3,"delta":-0.22,"impliedVolatility":0.28,"openInterest":800}
		]}`)
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL))
	data, err := c.Options(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, 182.5, data.LastUnderlying)
	require.Len(t, data.Contracts, 2)
	assert.Equal(t, "call", data.Contracts[0].Type)
	assert.Equal(t, 150.0, data.Contracts[0].Strike)
	assert.Equal(t, "2027-01-15", data.Contracts[0].ExpirationDate)
	assert.Equal(t, 0.85, data.Contracts[0].Delta)
}

func TestFundamentals(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"General":{"Code":"AAPL","Sector":"Technology"},
			"Highlights":{"MarketCapitalization":2.8e12,"PERatio":28.4,"DividendYield":0.0055},
			"Technicals":{"Beta":1.2,"52WeekLow":155.0,"52WeekHigh":199.6}
		}`)
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL))
	f, err := c.Fundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Technology", f.General.Sector)
	assert.Equal(t, 28.4, f.Highlights.PERatio)
	assert.Equal(t, 1.2, f.Technicals.Beta)
	assert.Equal(t, 155.0, f.Technicals.FiftyTwoWeekLow)
}

func TestStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limit exceeded"}`)
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL))
	_, err := c.Quote(context.Background(), "AAPL")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Contains(t, se.Body, "rate limit")
}

func TestPing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user", r.URL.Path)
		fmt.Fprint(w, `{"name":"test","apiRequests":12}`)
	}))
	defer ts.Close()

	c := NewClient("k", WithBaseURL(ts.URL))
	assert.NoError(t, c.Ping(context.Background()))
}
