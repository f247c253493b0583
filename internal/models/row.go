package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one record in a row store: column header -> cell text.
type Row map[string]string

// Column headers, in sheet order.
const (
	ColID           = "ID"
	ColUser         = "User"
	ColUnderlying   = "Underlying"
	ColStrikePrice  = "Strike Price"
	ColOptionType   = "Option Type"
	ColEntryPrice   = "Entry Price"
	ColEntryTime    = "Entry Time"
	ColExitPrice    = "Exit Price"
	ColExitTime     = "Exit Time"
	ColStatus       = "Status"
	ColPnL          = "PnL"
	ColCompanyName  = "Company Name"
	ColLotSize      = "Lot Size"
	ColNumberOfLots = "Number of Lots"
	ColInvestment   = "Investment"
)

// Header is the column layout written on first use of an empty store.
var Header = []string{
	ColID, ColUser, ColUnderlying, ColStrikePrice, ColOptionType,
	ColEntryPrice, ColEntryTime, ColExitPrice, ColExitTime,
	ColStatus, ColPnL, ColCompanyName, ColLotSize, ColNumberOfLots, ColInvestment,
}

// TimeLayout is how timestamps are written to the store.
const TimeLayout = "2006-01-02 15:04:05"

// Values returns the cells in header order.
func (r Row) Values(header []string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = r[col]
	}
	return out
}

// RowFromValues zips a header with a slice of cells. Missing cells are empty.
func RowFromValues(header, values []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = ""
		}
	}
	return row
}

// EncodeTrade flattens a trade into a row, formatting times in loc.
func EncodeTrade(t Trade, loc *time.Location) Row {
	row := Row{
		ColID:           strconv.FormatInt(t.ID, 10),
		ColUser:         t.Owner,
		ColUnderlying:   t.Underlying,
		ColStrikePrice:  formatNumber(t.StrikePrice),
		ColOptionType:   string(t.OptionType),
		ColEntryPrice:   formatNumber(t.EntryPrice),
		ColEntryTime:    t.EntryTime.In(loc).Format(TimeLayout),
		ColExitPrice:    "",
		ColExitTime:     "",
		ColStatus:       string(t.Status),
		ColPnL:          "",
		ColCompanyName:  t.CompanyName,
		ColLotSize:      strconv.Itoa(t.LotSize),
		ColNumberOfLots: strconv.Itoa(t.NumberOfLots),
		ColInvestment:   formatNumber(t.Investment),
	}
	for col, v := range ExitFields(t, loc) {
		row[col] = v
	}
	return row
}

// ExitFields returns the four cells written when a trade is closed.
// It is empty for an open trade.
func ExitFields(t Trade, loc *time.Location) Row {
	if t.Status != StatusClosed || t.ExitPrice == nil || t.ExitTime == nil || t.PnL == nil {
		return Row{}
	}
	return Row{
		ColExitPrice: formatNumber(*t.ExitPrice),
		ColExitTime:  t.ExitTime.In(loc).Format(TimeLayout),
		ColStatus:    string(StatusClosed),
		ColPnL:       formatNumber(*t.PnL),
	}
}

// DecodeTrade parses a row back into a trade. Timestamps are read in loc.
// Rows that break the open/closed invariant are rejected.
func DecodeTrade(row Row, loc *time.Location) (Trade, error) {
	var (
		t   Trade
		err error
	)

	if t.ID, err = strconv.ParseInt(strings.TrimSpace(row[ColID]), 10, 64); err != nil {
		return Trade{}, fmt.Errorf("column %q: %w", ColID, err)
	}
	t.Owner = row[ColUser]
	t.Underlying = row[ColUnderlying]
	t.CompanyName = row[ColCompanyName]
	t.OptionType = OptionType(strings.TrimSpace(row[ColOptionType]))
	t.Status = Status(strings.ToUpper(strings.TrimSpace(row[ColStatus])))

	if t.StrikePrice, err = parseNumber(row[ColStrikePrice]); err != nil {
		return Trade{}, fmt.Errorf("column %q: %w", ColStrikePrice, err)
	}
	if t.EntryPrice, err = parseNumber(row[ColEntryPrice]); err != nil {
		return Trade{}, fmt.Errorf("column %q: %w", ColEntryPrice, err)
	}
	if t.EntryTime, err = time.ParseInLocation(TimeLayout, strings.TrimSpace(row[ColEntryTime]), loc); err != nil {
		return Trade{}, fmt.Errorf("column %q: %w", ColEntryTime, err)
	}
	if t.LotSize, err = parseCount(row[ColLotSize]); err != nil {
		return Trade{}, fmt.Errorf("column %q: %w", ColLotSize, err)
	}
	if t.NumberOfLots, err = parseCount(row[ColNumberOfLots]); err != nil {
		return Trade{}, fmt.Errorf("column %q: %w", ColNumberOfLots, err)
	}
	if strings.TrimSpace(row[ColInvestment]) == "" {
		t.Investment = t.EntryPrice * float64(t.LotSize) * float64(t.NumberOfLots)
	} else if t.Investment, err = parseNumber(row[ColInvestment]); err != nil {
		return Trade{}, fmt.Errorf("column %q: %w", ColInvestment, err)
	}

	exitPrice := strings.TrimSpace(row[ColExitPrice])
	exitTime := strings.TrimSpace(row[ColExitTime])
	pnl := strings.TrimSpace(row[ColPnL])

	switch t.Status {
	case StatusOpen:
		if exitPrice != "" || exitTime != "" || pnl != "" {
			return Trade{}, fmt.Errorf("trade %d is OPEN but carries exit fields", t.ID)
		}
	case StatusClosed:
		if exitPrice == "" || exitTime == "" || pnl == "" {
			return Trade{}, fmt.Errorf("trade %d is CLOSED but misses exit fields", t.ID)
		}
		ep, err := parseNumber(exitPrice)
		if err != nil {
			return Trade{}, fmt.Errorf("column %q: %w", ColExitPrice, err)
		}
		et, err := time.ParseInLocation(TimeLayout, exitTime, loc)
		if err != nil {
			return Trade{}, fmt.Errorf("column %q: %w", ColExitTime, err)
		}
		p, err := parseNumber(pnl)
		if err != nil {
			return Trade{}, fmt.Errorf("column %q: %w", ColPnL, err)
		}
		t.ExitPrice, t.ExitTime, t.PnL = &ep, &et, &p
	default:
		return Trade{}, fmt.Errorf("trade %d has unknown status %q", t.ID, t.Status)
	}

	return t, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// parseCount reads a positive integer cell; an empty cell means 1.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Spreadsheets may hand integers back as "75.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, err
		}
		n = int(f)
	}
	if n < 1 {
		return 0, fmt.Errorf("count must be at least 1, got %d", n)
	}
	return n, nil
}
