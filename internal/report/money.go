// Package report renders ledger data for people: rupee amounts, plain tables,
// JSON/YAML documents and a markdown summary.
package report

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the ISO code every ledger amount is denominated in.
const Currency = money.INR

// Rupees formats amount as Indian rupees, e.g. "₹120.50".
func Rupees(amount float64) string {
	cur := money.GetCurrency(Currency)
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), Currency).Display()
}

// Signed is Rupees with an explicit "+" on gains, used for P&L columns.
func Signed(amount float64) string {
	s := Rupees(amount)
	if decimal.NewFromFloat(amount).Round(2).IsPositive() {
		return "+" + s
	}
	return s
}
