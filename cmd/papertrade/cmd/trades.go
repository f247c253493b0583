package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"options-paper-ledger/internal/ledger"
	"options-paper-ledger/internal/models"
	"options-paper-ledger/internal/report"
)

func newAddCmd(a *app) *cobra.Command {
	var in ledger.NewTrade

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enter a new option trade",
		Long: `Record a new OPEN trade at the given entry price.

The lot size of NIFTY, BANKNIFTY and FINNIFTY comes from the exchange table;
--lot-size and --company are only used with --underlying OTHER.

Examples:
  papertrade add --underlying BANKNIFTY --strike 45000 --type CE --entry 120.5 --lots 2
  papertrade add --underlying OTHER --company RELIANCE --lot-size 250 --strike 2900 --type PE --entry 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in.Owner = a.owner
			id, err := a.ledger.AddTrade(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("add trade: %w", err)
			}

			trade, _, err := a.ledger.Get(cmd.Context(), id, a.owner)
			if err != nil {
				return err
			}
			if a.format == report.FormatTable {
				fmt.Fprintf(cmd.OutOrStdout(), "Added trade #%d: %s, %d x %d @ %s (investment %s)\n",
					id, trade.Label(), trade.NumberOfLots, trade.LotSize,
					report.Rupees(trade.EntryPrice), report.Rupees(trade.Investment))
				return nil
			}
			return report.WriteTrades(cmd.OutOrStdout(), a.format, []models.Trade{trade}, a.loc)
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Underlying, "underlying", "NIFTY", "NIFTY, BANKNIFTY, FINNIFTY or OTHER")
	f.Float64Var(&in.StrikePrice, "strike", 0, "strike price (required)")
	f.StringVarP(&in.OptionType, "type", "t", "", "option type: CE or PE (required)")
	f.Float64Var(&in.EntryPrice, "entry", 0, "entry premium (required)")
	f.IntVar(&in.NumberOfLots, "lots", 1, "number of lots")
	f.IntVar(&in.LotSizeHint, "lot-size", 0, "lot size for OTHER underlyings")
	f.StringVar(&in.CompanyName, "company", "", "company name for OTHER underlyings")
	_ = cmd.MarkFlagRequired("strike")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("entry")
	return cmd
}

func newCloseCmd(a *app) *cobra.Command {
	var exitPrice float64

	cmd := &cobra.Command{
		Use:   "close <trade-id>",
		Short: "Close an open trade at an exit price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("trade id must be an integer: %q", args[0])
			}

			trade, err := a.ledger.CloseTrade(cmd.Context(), id, exitPrice, a.owner)
			if err != nil {
				return fmt.Errorf("close trade: %w", err)
			}
			if a.format == report.FormatTable {
				fmt.Fprintf(cmd.OutOrStdout(), "Closed trade #%d: %s @ %s, P&L %s\n",
					id, trade.Label(), report.Rupees(exitPrice), report.Signed(trade.RealizedPnL()))
				return nil
			}
			return report.WriteTrades(cmd.OutOrStdout(), a.format, []models.Trade{trade}, a.loc)
		},
	}

	cmd.Flags().Float64VarP(&exitPrice, "exit", "x", 0, "exit premium (required)")
	_ = cmd.MarkFlagRequired("exit")
	return cmd
}

func newListCmd(a *app, use, short string, closed bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := a.ledger.ListOpen
			if closed {
				list = a.ledger.ListClosed
			}
			trades, err := list(cmd.Context(), a.owner)
			if err != nil {
				return fmt.Errorf("list trades: %w", err)
			}
			return report.WriteTrades(cmd.OutOrStdout(), a.format, trades, a.loc)
		},
	}
}
