// Package accounting derives performance statistics from ledger snapshots.
// Every function is pure; inputs that are not CLOSED trades are ignored.
package accounting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"options-paper-ledger/internal/models"
)

// Summary aggregates the realized results of closed trades.
type Summary struct {
	TotalPnL        float64 `json:"total_pnl" yaml:"total_pnl"`
	WinRatePct      float64 `json:"win_rate_pct" yaml:"win_rate_pct"`
	AvgPnL          float64 `json:"avg_pnl" yaml:"avg_pnl"`
	TotalTrades     int     `json:"total_trades" yaml:"total_trades"`
	Wins            int     `json:"wins" yaml:"wins"`
	Losses          int     `json:"losses" yaml:"losses"`
	TotalInvestment float64 `json:"total_investment" yaml:"total_investment"`
}

// Point is one step of the cumulative P&L curve.
type Point struct {
	ExitTime      time.Time `json:"exit_time" yaml:"exit_time"`
	CumulativePnL float64   `json:"cumulative_pnl" yaml:"cumulative_pnl"`
}

// PnL is (exit - entry) * lotSize * lots.
func PnL(entryPrice, exitPrice float64, lotSize, lots int) float64 {
	return decimal.NewFromFloat(exitPrice).
		Sub(decimal.NewFromFloat(entryPrice)).
		Mul(decimal.NewFromInt(int64(lotSize))).
		Mul(decimal.NewFromInt(int64(lots))).
		InexactFloat64()
}

// Investment is entryPrice * lotSize * lots, the capital committed at entry.
func Investment(entryPrice float64, lotSize, lots int) float64 {
	return decimal.NewFromFloat(entryPrice).
		Mul(decimal.NewFromInt(int64(lotSize))).
		Mul(decimal.NewFromInt(int64(lots))).
		InexactFloat64()
}

// Summarize computes total, average and win rate over closed trades.
// A trade with zero pnl is neither a win nor a loss but still counts toward TotalTrades.
// An empty input yields the zero Summary.
func Summarize(trades []models.Trade) Summary {
	var s Summary
	total := decimal.Zero
	invested := decimal.Zero

	for _, t := range trades {
		if !isClosed(t) {
			continue
		}
		s.TotalTrades++
		pnl := *t.PnL
		switch {
		case pnl > 0:
			s.Wins++
		case pnl < 0:
			s.Losses++
		}
		total = total.Add(decimal.NewFromFloat(pnl))
		invested = invested.Add(decimal.NewFromFloat(t.Investment))
	}

	if s.TotalTrades == 0 {
		return Summary{}
	}

	n := decimal.NewFromInt(int64(s.TotalTrades))
	s.TotalPnL = total.InexactFloat64()
	s.AvgPnL = total.Div(n).InexactFloat64()
	s.WinRatePct = decimal.NewFromInt(int64(s.Wins)).Mul(decimal.NewFromInt(100)).Div(n).InexactFloat64()
	s.TotalInvestment = invested.InexactFloat64()
	return s
}

// CumulativePnL orders closed trades by exit time (ties keep input order)
// and returns the running sum of their pnl.
func CumulativePnL(trades []models.Trade) []Point {
	closed := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if isClosed(t) {
			closed = append(closed, t)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].ExitTime.Before(*closed[j].ExitTime)
	})

	points := make([]Point, len(closed))
	running := decimal.Zero
	for i, t := range closed {
		running = running.Add(decimal.NewFromFloat(*t.PnL))
		points[i] = Point{ExitTime: *t.ExitTime, CumulativePnL: running.InexactFloat64()}
	}
	return points
}

func isClosed(t models.Trade) bool {
	return t.Status == models.StatusClosed && t.PnL != nil && t.ExitTime != nil
}
