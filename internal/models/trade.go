package models

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a trade.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// OptionType is the option right, stored in exchange notation.
type OptionType string

const (
	Call OptionType = "CE"
	Put  OptionType = "PE"
)

// ParseOptionType accepts CE/PE as well as CALL/PUT, case-insensitively.
func ParseOptionType(s string) (OptionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CE", "CALL":
		return Call, true
	case "PE", "PUT":
		return Put, true
	}
	return "", false
}

// Other is the catch-all underlying; its lot size and company name come from the user.
const Other = "OTHER"

// LotSizes holds the exchange-defined contract multipliers for the known indices.
var LotSizes = map[string]int{
	"NIFTY":     75,
	"BANKNIFTY": 35,
	"FINNIFTY":  65,
}

// DefaultLotSize returns the table lot size for an underlying, or 1 when it is not listed.
func DefaultLotSize(underlying string) int {
	if size, ok := LotSizes[strings.ToUpper(underlying)]; ok {
		return size
	}
	return 1
}

// IsKnownUnderlying reports whether the lot size of the underlying is table-defined.
func IsKnownUnderlying(underlying string) bool {
	_, ok := LotSizes[strings.ToUpper(underlying)]
	return ok
}

// Trade represents one simulated options position.
// Exit fields are nil while the trade is open.
type Trade struct {
	ID           int64      `json:"id" yaml:"id"`
	Owner        string     `json:"user,omitempty" yaml:"user,omitempty"`
	Underlying   string     `json:"underlying" yaml:"underlying"`
	StrikePrice  float64    `json:"strike_price" yaml:"strike_price"`
	OptionType   OptionType `json:"option_type" yaml:"option_type"`
	EntryPrice   float64    `json:"entry_price" yaml:"entry_price"`
	EntryTime    time.Time  `json:"entry_time" yaml:"entry_time"`
	ExitPrice    *float64   `json:"exit_price,omitempty" yaml:"exit_price,omitempty"`
	ExitTime     *time.Time `json:"exit_time,omitempty" yaml:"exit_time,omitempty"`
	Status       Status     `json:"status" yaml:"status"`
	PnL          *float64   `json:"pnl,omitempty" yaml:"pnl,omitempty"`
	CompanyName  string     `json:"company_name,omitempty" yaml:"company_name,omitempty"`
	LotSize      int        `json:"lot_size" yaml:"lot_size"`
	NumberOfLots int        `json:"number_of_lots" yaml:"number_of_lots"`
	Investment   float64    `json:"investment" yaml:"investment"`
}

// IsOpen reports whether the trade has not been exited yet.
func (t Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// Clone returns a copy that shares no exit pointers with t.
func (t Trade) Clone() Trade {
	if t.ExitPrice != nil {
		v := *t.ExitPrice
		t.ExitPrice = &v
	}
	if t.ExitTime != nil {
		v := *t.ExitTime
		t.ExitTime = &v
	}
	if t.PnL != nil {
		v := *t.PnL
		t.PnL = &v
	}
	return t
}

// Label is a short human description such as "NIFTY 22500 CE".
func (t Trade) Label() string {
	name := t.Underlying
	if name == Other && t.CompanyName != "" {
		name = t.CompanyName
	}
	return strings.TrimSpace(name + " " + formatNumber(t.StrikePrice) + " " + string(t.OptionType))
}

// RealizedPnL returns the stored pnl, or 0 for an open trade.
func (t Trade) RealizedPnL() float64 {
	if t.PnL == nil {
		return 0
	}
	return *t.PnL
}
