package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"quoteResponse":{"result":[
			{"symbol":"AAPL","regularMarketPrice":182.5,"regularMarketVolume":4200000,"marketCap":2800000000000}
		]}}`)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	q, err := c.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 182.5, q.RegularMarketPrice)
	assert.Equal(t, int64(4200000), q.RegularMarketVolume)
}

func TestQuote_NoResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse":{"result":[]}}`)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	_, err := c.Quote(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestOptions_FetchesAllExpirations(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/options/AAPL", r.URL.Path)
		switch r.URL.Query().Get("date") {
		case "":
			fmt.Fprint(w, `{"optionChain":{"result":[{
				"underlyingSymbol":"AAPL",
				"expirationDates":[1758240000,1789776000],
				"quote":{"regularMarketPrice":182.5},
				"options":[{"expirationDate":1758240000,
					"calls":[{"contractSymbol":"AAPL260918C00170000","strike":170,"expiration":1758240000,"bid":15.0,"ask":15.6,"impliedVolatility":0.3,"openInterest":900}],
					"puts":[]}]
			}]}}`)
		case "1789776000":
			fmt.Fprint(w, `{"optionChain":{"result":[{
				"underlyingSymbol":"AAPL",
				"expirationDates":[1758240000,1789776000],
				"quote":{"regularMarketPrice":182.5},
				"options":[{"expirationDate":1789776000,
					"calls":[{"contractSymbol":"AAPL270917C00150000","strike":150,"expiration":1789776000,"bid":40.0,"ask":41.0,"impliedVolatility":0.32,"openInterest":400}],
					"puts":[{"contractSymbol":"AAPL270917P00150000","strike":150,"expiration":1789776000,"bid":6.0,"ask":6.4,"impliedVolatility":0.33,"openInterest":150}]}]
			}]}}`)
		default:
			t.Errorf("unexpected date parameter %q", r.URL.Query().Get("date"))
		}
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	chain, err := c.Options(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", chain.UnderlyingSymbol)
	assert.Equal(t, 182.5, chain.UnderlyingPrice)
	require.Len(t, chain.Calls, 2)
	require.Len(t, chain.Puts, 1)
	assert.Equal(t, 170.0, chain.Calls[0].Strike)
	assert.Equal(t, 150.0, chain.Calls[1].Strike)
}

func TestStatusErrorSurfaces(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "unauthorized")
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	_, err := c.Quote(context.Background(), "AAPL")
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}
