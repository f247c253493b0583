package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"options-paper-ledger/internal/config"
	"options-paper-ledger/internal/ledger"
	"options-paper-ledger/internal/logger"
	"options-paper-ledger/internal/report"
	"options-paper-ledger/internal/store"
)

// app is the state shared by every subcommand once the root has started.
type app struct {
	configPath string
	storeFlag  string
	ownerFlag  string
	outputFlag string
	logLevel   string

	cfg    config.Config
	log    *zap.Logger
	store  store.RecordStore
	ledger *ledger.Ledger
	loc    *time.Location
	format report.Format
	owner  string
}

// NewRootCmd builds the papertrade command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "papertrade",
		Short: "Paper trading ledger for index and stock options",
		Long: `Papertrade records simulated option trades and reports on their performance.

Trades are entered at a price, closed later at an exit price, and the realized
P&L is computed from the exchange lot size:

  pnl = (exit - entry) * lot size * number of lots

Examples:
  papertrade add --underlying NIFTY --strike 22500 --type CE --entry 120.5 --lots 2
  papertrade close 1 --exit 150
  papertrade summary --output json
  papertrade report`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.start,
		PersistentPostRunE: a.stop,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "./configs", "directory holding config.yml")
	pf.StringVar(&a.storeFlag, "store", "", "record store driver (sqlite, csv, sheets, dynamodb, memory); overrides config")
	pf.StringVarP(&a.ownerFlag, "user", "u", "", "user the trades belong to (default from config)")
	pf.StringVarP(&a.outputFlag, "output", "o", "table", "output format: table, json or yaml")
	pf.StringVar(&a.logLevel, "log-level", "off", "log level (off, debug, info, warn, error)")

	root.AddCommand(
		newAddCmd(a),
		newCloseCmd(a),
		newListCmd(a, "open", "List open trades", false),
		newListCmd(a, "closed", "List closed trades", true),
		newSummaryCmd(a),
		newSeriesCmd(a),
		newReportCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) start(cmd *cobra.Command, _ []string) error {
	switch cmd.Name() {
	case "version", "help":
		return nil
	}

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.storeFlag != "" {
		cfg.Store.Driver = a.storeFlag
	}
	a.cfg = cfg

	if a.format, err = report.ParseFormat(a.outputFlag); err != nil {
		return err
	}
	if a.loc, err = cfg.Ledger.Location(); err != nil {
		return err
	}

	a.owner = cfg.Ledger.DefaultOwner
	if a.ownerFlag != "" {
		a.owner = a.ownerFlag
	}

	if a.log, err = logger.NewLogger(a.logLevel, cfg.Logger.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx := cmd.Context()
	if a.store, err = store.Open(ctx, &cfg, a.log); err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	a.ledger = ledger.New(a.store, a.log,
		ledger.WithLocation(a.loc),
		ledger.WithOwnerScoping(cfg.Ledger.OwnerScoping),
	)
	if err := a.ledger.Init(ctx); err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}
	return nil
}

func (a *app) stop(_ *cobra.Command, _ []string) error {
	if a.log != nil {
		_ = a.log.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
