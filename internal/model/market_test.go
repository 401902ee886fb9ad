package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionContract_Mid(t *testing.T) {
	c := OptionContract{Bid: 2.40, Ask: 2.60}
	assert.InDelta(t, 2.50, c.Mid(), 0.001)
}

func TestOptionContract_DTE(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	c := OptionContract{Expiration: now.AddDate(0, 0, 45)}
	assert.Equal(t, 45, c.DTE(now))

	expired := OptionContract{Expiration: now.AddDate(0, 0, -3)}
	assert.Equal(t, -3, expired.DTE(now))
}

func TestOptionChain_CallsFiltersPuts(t *testing.T) {
	ch := OptionChain{Contracts: []OptionContract{
		{Right: Call, Strike: 100},
		{Right: Put, Strike: 100},
		{Right: Call, Strike: 110},
	}}

	calls := ch.Calls()
	assert.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, Call, c.Right)
	}
}
