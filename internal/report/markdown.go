package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"options-paper-ledger/internal/accounting"
	"options-paper-ledger/internal/models"
)

// Book is everything the markdown report shows for one owner.
type Book struct {
	Owner    string
	Open     []models.Trade
	Closed   []models.Trade
	Location *time.Location
}

// Markdown builds the portfolio report: performance summary, open positions,
// closed trades and the cumulative P&L series.
func Markdown(b Book) string {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	summary := accounting.Summarize(b.Closed)

	var sb strings.Builder
	title := "Paper Trading Report"
	if b.Owner != "" {
		title += " for " + b.Owner
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)

	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Total P&L | %s |\n", Signed(summary.TotalPnL))
	fmt.Fprintf(&sb, "| Win rate | %s%% |\n", strconv.FormatFloat(summary.WinRatePct, 'f', 2, 64))
	fmt.Fprintf(&sb, "| Average P&L | %s |\n", Signed(summary.AvgPnL))
	fmt.Fprintf(&sb, "| Closed trades | %d |\n", summary.TotalTrades)
	fmt.Fprintf(&sb, "| Capital deployed | %s |\n\n", Rupees(summary.TotalInvestment))

	sb.WriteString("## Open Positions\n\n")
	if len(b.Open) == 0 {
		sb.WriteString("No open positions.\n\n")
	} else {
		sb.WriteString("| ID | Trade | Lots | Entry | Entry Time | Investment |\n|---|---|---|---|---|---|\n")
		for _, t := range b.Open {
			fmt.Fprintf(&sb, "| %d | %s | %d x %d | %s | %s | %s |\n",
				t.ID, t.Label(), t.NumberOfLots, t.LotSize, Rupees(t.EntryPrice),
				t.EntryTime.In(loc).Format(models.TimeLayout), Rupees(t.Investment))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Closed Trades\n\n")
	if len(b.Closed) == 0 {
		sb.WriteString("No closed trades yet.\n\n")
	} else {
		sb.WriteString("| ID | Trade | Lots | Entry | Exit | Exit Time | P&L |\n|---|---|---|---|---|---|---|\n")
		for _, t := range b.Closed {
			exitTime := ""
			if t.ExitTime != nil {
				exitTime = t.ExitTime.In(loc).Format(models.TimeLayout)
			}
			exitPrice := 0.0
			if t.ExitPrice != nil {
				exitPrice = *t.ExitPrice
			}
			fmt.Fprintf(&sb, "| %d | %s | %d x %d | %s | %s | %s | %s |\n",
				t.ID, t.Label(), t.NumberOfLots, t.LotSize, Rupees(t.EntryPrice),
				Rupees(exitPrice), exitTime, Signed(t.RealizedPnL()))
		}
		sb.WriteString("\n")
	}

	points := accounting.CumulativePnL(b.Closed)
	if len(points) > 0 {
		sb.WriteString("## Cumulative P&L\n\n")
		sb.WriteString("| Exit Time | Cumulative P&L |\n|---|---|\n")
		for _, p := range points {
			fmt.Fprintf(&sb, "| %s | %s |\n", p.ExitTime.In(loc).Format(models.TimeLayout), Signed(p.CumulativePnL))
		}
	}

	return sb.String()
}

// Render turns markdown into terminal output using a glamour standard style
// ("dark", "light", "notty", ...). A width of zero disables word wrap.
func Render(md, style string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("could not create markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("could not render report: %w", err)
	}
	return out, nil
}
