package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"options-paper-ledger/internal/accounting"
	"options-paper-ledger/internal/report"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show total P&L, win rate and average P&L of closed trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closed, err := a.ledger.ListClosed(cmd.Context(), a.owner)
			if err != nil {
				return fmt.Errorf("list closed trades: %w", err)
			}
			return report.WriteSummary(cmd.OutOrStdout(), a.format, accounting.Summarize(closed))
		},
	}
}

func newSeriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "series",
		Short: "Show cumulative P&L ordered by exit time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			closed, err := a.ledger.ListClosed(cmd.Context(), a.owner)
			if err != nil {
				return fmt.Errorf("list closed trades: %w", err)
			}
			return report.WriteSeries(cmd.OutOrStdout(), a.format, accounting.CumulativePnL(closed), a.loc)
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	var (
		style string
		width int
		raw   bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a markdown portfolio report",
		Long: `Render performance, open positions, closed trades and the cumulative
P&L series as markdown, styled for the terminal.

Examples:
  papertrade report
  papertrade report --style light --width 120
  papertrade report --raw > report.md`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			open, err := a.ledger.ListOpen(cmd.Context(), a.owner)
			if err != nil {
				return fmt.Errorf("list open trades: %w", err)
			}
			closed, err := a.ledger.ListClosed(cmd.Context(), a.owner)
			if err != nil {
				return fmt.Errorf("list closed trades: %w", err)
			}

			md := report.Markdown(report.Book{Owner: a.owner, Open: open, Closed: closed, Location: a.loc})
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), md)
				return err
			}

			out, err := report.Render(md, style, width)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}

	cmd.Flags().StringVar(&style, "style", "dark", "glamour style: dark, light, notty, dracula, ...")
	cmd.Flags().IntVar(&width, "width", 100, "word wrap width")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the markdown source instead of rendering it")
	return cmd
}
