package models

// TradeRow is the SQL representation of one ledger row.
// Cells are kept as text so the table mirrors the sheet layout;
// Position orders rows in creation order.
type TradeRow struct {
	Position     uint   `gorm:"column:position;primaryKey;autoIncrement"`
	TradeID      string `gorm:"column:id;index"`
	User         string `gorm:"column:user;index"`
	Underlying   string `gorm:"column:underlying"`
	StrikePrice  string `gorm:"column:strike_price"`
	OptionType   string `gorm:"column:option_type"`
	EntryPrice   string `gorm:"column:entry_price"`
	EntryTime    string `gorm:"column:entry_time"`
	ExitPrice    string `gorm:"column:exit_price"`
	ExitTime     string `gorm:"column:exit_time"`
	Status       string `gorm:"column:status;index"`
	PnL          string `gorm:"column:pnl"`
	CompanyName  string `gorm:"column:company_name"`
	LotSize      string `gorm:"column:lot_size"`
	NumberOfLots string `gorm:"column:number_of_lots"`
	Investment   string `gorm:"column:investment"`
}

// TableName pins the table name regardless of naming strategy.
func (TradeRow) TableName() string {
	return "trades"
}

// SQLColumns maps sheet headers to SQL column names.
var SQLColumns = map[string]string{
	ColID:           "id",
	ColUser:         "user",
	ColUnderlying:   "underlying",
	ColStrikePrice:  "strike_price",
	ColOptionType:   "option_type",
	ColEntryPrice:   "entry_price",
	ColEntryTime:    "entry_time",
	ColExitPrice:    "exit_price",
	ColExitTime:     "exit_time",
	ColStatus:       "status",
	ColPnL:          "pnl",
	ColCompanyName:  "company_name",
	ColLotSize:      "lot_size",
	ColNumberOfLots: "number_of_lots",
	ColInvestment:   "investment",
}

// NewTradeRow copies a row's cells into the SQL model.
func NewTradeRow(r Row) TradeRow {
	return TradeRow{
		TradeID:      r[ColID],
		User:         r[ColUser],
		Underlying:   r[ColUnderlying],
		StrikePrice:  r[ColStrikePrice],
		OptionType:   r[ColOptionType],
		EntryPrice:   r[ColEntryPrice],
		EntryTime:    r[ColEntryTime],
		ExitPrice:    r[ColExitPrice],
		ExitTime:     r[ColExitTime],
		Status:       r[ColStatus],
		PnL:          r[ColPnL],
		CompanyName:  r[ColCompanyName],
		LotSize:      r[ColLotSize],
		NumberOfLots: r[ColNumberOfLots],
		Investment:   r[ColInvestment],
	}
}

// Row converts the SQL model back to header-keyed cells.
func (tr TradeRow) Row() Row {
	return Row{
		ColID:           tr.TradeID,
		ColUser:         tr.User,
		ColUnderlying:   tr.Underlying,
		ColStrikePrice:  tr.StrikePrice,
		ColOptionType:   tr.OptionType,
		ColEntryPrice:   tr.EntryPrice,
		ColEntryTime:    tr.EntryTime,
		ColExitPrice:    tr.ExitPrice,
		ColExitTime:     tr.ExitTime,
		ColStatus:       tr.Status,
		ColPnL:          tr.PnL,
		ColCompanyName:  tr.CompanyName,
		ColLotSize:      tr.LotSize,
		ColNumberOfLots: tr.NumberOfLots,
		ColInvestment:   tr.Investment,
	}
}
