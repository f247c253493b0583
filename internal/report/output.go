package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"options-paper-ledger/internal/accounting"
	"options-paper-ledger/internal/models"
)

// Format selects how command output is written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml (case-insensitive, "yml" allowed).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// WriteTrades writes trades, one row per trade for the table format.
// Times are shown in loc.
func WriteTrades(w io.Writer, format Format, trades []models.Trade, loc *time.Location) error {
	if format != FormatTable {
		if trades == nil {
			trades = []models.Trade{}
		}
		return encode(w, format, trades)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRADE\tLOTS\tLOT SIZE\tENTRY\tENTRY TIME\tEXIT\tEXIT TIME\tPNL\tINVESTMENT")
	for _, t := range trades {
		exit, exitTime, pnl := "-", "-", "-"
		if t.ExitPrice != nil {
			exit = Rupees(*t.ExitPrice)
		}
		if t.ExitTime != nil {
			exitTime = t.ExitTime.In(loc).Format(models.TimeLayout)
		}
		if t.PnL != nil {
			pnl = Signed(*t.PnL)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Label(), t.NumberOfLots, t.LotSize,
			Rupees(t.EntryPrice), t.EntryTime.In(loc).Format(models.TimeLayout),
			exit, exitTime, pnl, Rupees(t.Investment))
	}
	return tw.Flush()
}

// WriteSummary writes the aggregate statistics of closed trades.
func WriteSummary(w io.Writer, format Format, s accounting.Summary) error {
	if format != FormatTable {
		return encode(w, format, s)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total P&L\t%s\n", Signed(s.TotalPnL))
	fmt.Fprintf(tw, "Win rate\t%s%%\n", strconv.FormatFloat(s.WinRatePct, 'f', 2, 64))
	fmt.Fprintf(tw, "Average P&L\t%s\n", Signed(s.AvgPnL))
	fmt.Fprintf(tw, "Closed trades\t%d (%d won, %d lost)\n", s.TotalTrades, s.Wins, s.Losses)
	fmt.Fprintf(tw, "Capital deployed\t%s\n", Rupees(s.TotalInvestment))
	return tw.Flush()
}

// WriteSeries writes the cumulative P&L curve.
func WriteSeries(w io.Writer, format Format, points []accounting.Point, loc *time.Location) error {
	if format != FormatTable {
		if points == nil {
			points = []accounting.Point{}
		}
		return encode(w, format, points)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXIT TIME\tCUMULATIVE PNL")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\n", p.ExitTime.In(loc).Format(models.TimeLayout), Signed(p.CumulativePnL))
	}
	return tw.Flush()
}

func encode(w io.Writer, format Format, v interface{}) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
