package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLotSize(t *testing.T) {
	assert.Equal(t, 75, DefaultLotSize("NIFTY"))
	assert.Equal(t, 35, DefaultLotSize("banknifty"))
	assert.Equal(t, 65, DefaultLotSize("FINNIFTY"))
	assert.Equal(t, 1, DefaultLotSize("RELIANCE"))
	assert.False(t, IsKnownUnderlying(Other))
}

func TestParseOptionType(t *testing.T) {
	testCases := []struct {
		in       string
		expected OptionType
		ok       bool
	}{
		{"CE", Call, true},
		{"pe", Put, true},
		{"Call", Call, true},
		{" PUT ", Put, true},
		{"XX", "", false},
	}
	for _, tc := range testCases {
		got, ok := ParseOptionType(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.expected, got, tc.in)
	}
}

func TestTradeLabel(t *testing.T) {
	assert.Equal(t, "NIFTY 22500 PE", Trade{Underlying: "NIFTY", StrikePrice: 22500, OptionType: Put}.Label())
	assert.Equal(t, "TCS 4100.5 CE", Trade{Underlying: Other, CompanyName: "TCS", StrikePrice: 4100.5, OptionType: Call}.Label())
}

func TestTradeClone(t *testing.T) {
	exit, pnl := 150.0, 2065.0
	at := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	orig := Trade{ID: 1, Status: StatusClosed, ExitPrice: &exit, ExitTime: &at, PnL: &pnl}

	c := orig.Clone()
	assert.Equal(t, orig, c)
	*c.ExitPrice, *c.PnL = 0, 0
	*c.ExitTime = time.Time{}
	assert.Equal(t, 150.0, exit)
	assert.Equal(t, 2065.0, pnl)
	assert.False(t, at.IsZero())

	open := Trade{ID: 2, Status: StatusOpen}.Clone()
	assert.Nil(t, open.PnL)
}
