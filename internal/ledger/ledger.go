// Package ledger owns the lifecycle of paper option trades: id assignment,
// lot-size resolution, the single open -> closed transition and read views.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"options-paper-ledger/internal/accounting"
	"options-paper-ledger/internal/models"
	"options-paper-ledger/internal/store"
)

var (
	// ErrInvalidTradeParameters rejects an AddTrade or CloseTrade call before anything is written.
	ErrInvalidTradeParameters = errors.New("invalid trade parameters")
	// ErrTradeNotOpen is returned by CloseTrade when no OPEN trade matches; nothing is written.
	ErrTradeNotOpen = errors.New("no open trade with this id")
)

const snapshotKey = "snapshot"

// NewTrade carries the user-supplied fields of a trade entry.
type NewTrade struct {
	Owner        string
	Underlying   string
	StrikePrice  float64
	OptionType   string
	EntryPrice   float64
	LotSizeHint  int // only used for the OTHER underlying
	CompanyName  string
	NumberOfLots int // 0 means 1
}

// Ledger is the authoritative record of all trades.
// Mutations are serialized in-process; the store is assumed to have a single writer process.
type Ledger struct {
	store        store.RecordStore
	logger       *zap.Logger
	now          func() time.Time
	loc          *time.Location
	ownerScoping bool
	snapshots    *cache.Cache

	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source for entry and exit timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the reporting timezone timestamps are recorded in.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

// WithOwnerScoping makes every read and close filter on the trade owner.
func WithOwnerScoping(enabled bool) Option {
	return func(l *Ledger) { l.ownerScoping = enabled }
}

// WithSnapshotCache keeps the decoded store snapshot for ttl between mutations.
// A zero ttl disables caching.
func WithSnapshotCache(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.snapshots = cache.New(ttl, 2*ttl)
		}
	}
}

// New creates a ledger over st. Owner scoping is on by default.
func New(st store.RecordStore, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:        st,
		logger:       logger.Named("ledger"),
		now:          time.Now,
		loc:          time.UTC,
		ownerScoping: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init writes the column header when the store is still empty.
func (l *Ledger) Init(ctx context.Context) error {
	if err := l.store.EnsureHeader(ctx, models.Header); err != nil {
		return fmt.Errorf("could not initialize ledger store: %w", err)
	}
	return nil
}

// AddTrade validates the entry, assigns the next id and appends an OPEN trade.
func (l *Ledger) AddTrade(ctx context.Context, in NewTrade) (int64, error) {
	trade, err := l.prepare(in)
	if err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.invalidate()

	build := func(id int64) models.Row {
		trade.ID = id
		return models.EncodeTrade(trade, l.loc)
	}

	var id int64
	if seq, ok := l.store.(store.Sequencer); ok {
		id, err = seq.AppendNext(ctx, build)
		if err != nil {
			return 0, fmt.Errorf("could not append trade: %w", err)
		}
	} else {
		rows, err := l.store.ReadAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("could not read trades: %w", err)
		}
		id = nextID(rows)
		if err := l.store.Append(ctx, build(id)); err != nil {
			return 0, fmt.Errorf("could not append trade: %w", err)
		}
	}

	l.logger.Info("Trade added",
		zap.Int64("trade_id", id),
		zap.String("owner", trade.Owner),
		zap.String("trade", trade.Label()),
		zap.Int("lot_size", trade.LotSize),
		zap.Int("number_of_lots", trade.NumberOfLots),
		zap.Float64("investment", trade.Investment),
	)
	return id, nil
}

// CloseTrade exits the first OPEN trade with this id (and owner, when scoping is on).
// Closing a missing or already closed trade returns ErrTradeNotOpen and writes nothing.
func (l *Ledger) CloseTrade(ctx context.Context, id int64, exitPrice float64, owner string) (models.Trade, error) {
	if exitPrice < 0 {
		return models.Trade{}, fmt.Errorf("%w: exit price must not be negative", ErrInvalidTradeParameters)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		return models.Trade{}, fmt.Errorf("could not read trades: %w", err)
	}

	log := l.logger.With(zap.Int64("trade_id", id), zap.String("owner", owner))
	for pos, row := range rows {
		if rid, ok := rowID(row); !ok || rid != id {
			continue
		}
		trade, err := models.DecodeTrade(row, l.loc)
		if err != nil {
			log.Warn("Skipping undecodable row", zap.Int("position", pos), zap.Error(err))
			continue
		}
		if !trade.IsOpen() || !l.visible(trade, owner) {
			continue
		}

		exitTime := l.now().In(l.loc).Truncate(time.Second)
		pnl := accounting.PnL(trade.EntryPrice, exitPrice, trade.LotSize, trade.NumberOfLots)
		trade.ExitPrice = &exitPrice
		trade.ExitTime = &exitTime
		trade.PnL = &pnl
		trade.Status = models.StatusClosed

		if err := l.store.UpdateFields(ctx, pos, models.ExitFields(trade, l.loc)); err != nil {
			return models.Trade{}, fmt.Errorf("could not close trade %d: %w", id, err)
		}
		l.invalidate()

		log.Info("Trade closed", zap.Float64("exit_price", exitPrice), zap.Float64("pnl", pnl))
		return trade, nil
	}

	log.Warn("Close ignored, no matching open trade")
	return models.Trade{}, fmt.Errorf("%w: %d", ErrTradeNotOpen, id)
}

// ListOpen returns the owner's OPEN trades in creation order.
func (l *Ledger) ListOpen(ctx context.Context, owner string) ([]models.Trade, error) {
	return l.filter(ctx, owner, models.StatusOpen)
}

// ListClosed returns the owner's CLOSED trades in creation order.
func (l *Ledger) ListClosed(ctx context.Context, owner string) ([]models.Trade, error) {
	return l.filter(ctx, owner, models.StatusClosed)
}

// Get returns one trade by id. The bool is false when it does not exist or is not visible to owner.
func (l *Ledger) Get(ctx context.Context, id int64, owner string) (models.Trade, bool, error) {
	trades, err := l.snapshot(ctx)
	if err != nil {
		return models.Trade{}, false, err
	}
	for _, t := range trades {
		if t.ID == id && l.visible(t, owner) {
			return t.Clone(), true, nil
		}
	}
	return models.Trade{}, false, nil
}

func (l *Ledger) filter(ctx context.Context, owner string, status models.Status) ([]models.Trade, error) {
	trades, err := l.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == status && l.visible(t, owner) {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// snapshot decodes every row of the store, serving from the cache when enabled.
// The returned trades may be shared with the cache; callers hand out clones.
func (l *Ledger) snapshot(ctx context.Context) ([]models.Trade, error) {
	if l.snapshots != nil {
		if cached, ok := l.snapshots.Get(snapshotKey); ok {
			return cached.([]models.Trade), nil
		}
	}

	rows, err := l.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not read trades: %w", err)
	}

	trades := make([]models.Trade, 0, len(rows))
	for pos, row := range rows {
		if len(row) == 0 {
			continue
		}
		t, err := models.DecodeTrade(row, l.loc)
		if err != nil {
			l.logger.Warn("Skipping undecodable row", zap.Int("position", pos), zap.Error(err))
			continue
		}
		trades = append(trades, t)
	}

	if l.snapshots != nil {
		l.snapshots.SetDefault(snapshotKey, trades)
	}
	return trades, nil
}

func (l *Ledger) invalidate() {
	if l.snapshots != nil {
		l.snapshots.Delete(snapshotKey)
	}
}

func (l *Ledger) visible(t models.Trade, owner string) bool {
	return !l.ownerScoping || t.Owner == owner
}

// prepare validates the entry and resolves every derived field except the id.
func (l *Ledger) prepare(in NewTrade) (models.Trade, error) {
	underlying := strings.ToUpper(strings.TrimSpace(in.Underlying))
	optionType, ok := models.ParseOptionType(in.OptionType)

	switch {
	case underlying == "":
		return models.Trade{}, fmt.Errorf("%w: underlying is required", ErrInvalidTradeParameters)
	case underlying != models.Other && !models.IsKnownUnderlying(underlying):
		return models.Trade{}, fmt.Errorf("%w: unknown underlying %q", ErrInvalidTradeParameters, in.Underlying)
	case !ok:
		return models.Trade{}, fmt.Errorf("%w: option type must be CE or PE, got %q", ErrInvalidTradeParameters, in.OptionType)
	case in.StrikePrice <= 0:
		return models.Trade{}, fmt.Errorf("%w: strike price must be positive", ErrInvalidTradeParameters)
	case in.EntryPrice <= 0:
		return models.Trade{}, fmt.Errorf("%w: entry price must be positive", ErrInvalidTradeParameters)
	case in.NumberOfLots < 0:
		return models.Trade{}, fmt.Errorf("%w: number of lots must be at least 1", ErrInvalidTradeParameters)
	}

	lots := in.NumberOfLots
	if lots == 0 {
		lots = 1
	}

	var lotSize int
	company := strings.TrimSpace(in.CompanyName)
	if underlying == models.Other {
		if company == "" {
			return models.Trade{}, fmt.Errorf("%w: company name is required for %s", ErrInvalidTradeParameters, models.Other)
		}
		if in.LotSizeHint < 1 {
			return models.Trade{}, fmt.Errorf("%w: lot size must be at least 1 for %s", ErrInvalidTradeParameters, models.Other)
		}
		lotSize = in.LotSizeHint
	} else {
		// Known instruments always use the exchange lot size.
		lotSize = models.DefaultLotSize(underlying)
		company = ""
	}

	return models.Trade{
		Owner:        in.Owner,
		Underlying:   underlying,
		StrikePrice:  in.StrikePrice,
		OptionType:   optionType,
		EntryPrice:   in.EntryPrice,
		EntryTime:    l.now().In(l.loc).Truncate(time.Second),
		Status:       models.StatusOpen,
		CompanyName:  company,
		LotSize:      lotSize,
		NumberOfLots: lots,
		Investment:   accounting.Investment(in.EntryPrice, lotSize, lots),
	}, nil
}

// nextID is one more than the largest id in rows, or 1 for an empty store.
// Rows whose id does not parse are ignored.
func nextID(rows []models.Row) int64 {
	var maxID int64
	for _, row := range rows {
		if id, ok := rowID(row); ok && id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

func rowID(row models.Row) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(row[models.ColID]), 10, 64)
	return id, err == nil
}
