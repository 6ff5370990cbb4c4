package model

import "github.com/google/uuid"

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// TimePoint is one sample of a scalar series (portfolio value, price, volume).
type TimePoint struct {
	Timestamp int64   // Epoch milliseconds
	Value     float64 // Sample value (zero is a valid value)
}

// Time returns the sample timestamp in epoch milliseconds.
func (p TimePoint) Time() int64 { return p.Timestamp }

// CandlePoint is one OHLCV bar. All OHLC fields are required; bars arriving
// with any of them missing are dropped during ingestion, never partially stored.
type CandlePoint struct {
	Timestamp int64 // Epoch milliseconds (bar open time)
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Time returns the bar open time in epoch milliseconds.
func (c CandlePoint) Time() int64 { return c.Timestamp }

// Provenance tags where a series came from.
type Provenance string

const (
	// ProvenanceLive marks data returned by the trading server.
	ProvenanceLive Provenance = "live"
	// ProvenanceSynthetic marks generated placeholder data. The UI must show
	// synthetic series as demo data.
	ProvenanceSynthetic Provenance = "synthetic"
)

// -----------------------------------------------------------------------------
// Selection
// -----------------------------------------------------------------------------

// Timeframe is a chart window selection.
type Timeframe string

const (
	Timeframe1D Timeframe = "1d"
	Timeframe1W Timeframe = "1w"
	Timeframe1M Timeframe = "1m"
	Timeframe3M Timeframe = "3m"
	Timeframe1Y Timeframe = "1y"
)

// timeframeShape maps a timeframe to the point count and inter-point interval
// used when synthesizing a series for it (hourly granularity for a day view,
// daily granularity for a month view, and so on).
var timeframeShape = map[Timeframe]struct {
	points int
	stepMs int64
}{
	Timeframe1D: {24, 3_600_000},      // 24 hourly points
	Timeframe1W: {28, 21_600_000},     // 28 six-hour points
	Timeframe1M: {30, 86_400_000},     // 30 daily points
	Timeframe3M: {90, 86_400_000},     // 90 daily points
	Timeframe1Y: {52, 7 * 86_400_000}, // 52 weekly points
}

// Points returns the number of samples a synthesized series of this timeframe
// carries. Unknown timeframes fall back to the 1d shape.
func (t Timeframe) Points() int {
	if s, ok := timeframeShape[t]; ok {
		return s.points
	}
	return timeframeShape[Timeframe1D].points
}

// StepMillis returns the inter-point interval in milliseconds.
func (t Timeframe) StepMillis() int64 {
	if s, ok := timeframeShape[t]; ok {
		return s.stepMs
	}
	return timeframeShape[Timeframe1D].stepMs
}

// Valid reports whether the timeframe is one of the supported windows.
func (t Timeframe) Valid() bool {
	_, ok := timeframeShape[t]
	return ok
}

// Selection is the currently viewed (symbol, timeframe) pair. Every fetch and
// render operation is scoped to a Selection; results produced under an older
// Selection are discarded, never applied.
type Selection struct {
	Symbol    string
	Timeframe Timeframe
}

// -----------------------------------------------------------------------------
// Strategy / Signal Types
// -----------------------------------------------------------------------------

// SignalAction is the direction of a strategy signal.
type SignalAction string

const (
	SignalBuy  SignalAction = "BUY"
	SignalSell SignalAction = "SELL"
)

// Signal is an immutable strategy buy/sell marker.
type Signal struct {
	Timestamp   int64
	Action      SignalAction
	StrategyID  string
	Price       float64
	Description string
}

// PositionType is the direction of an open strategy position.
type PositionType string

const (
	PositionLong  PositionType = "LONG"
	PositionShort PositionType = "SHORT"
)

// TrailingStop tracks a stop-loss price that ratchets favorably with price
// movement and never retreats. It deactivates exactly once, when triggered.
type TrailingStop struct {
	StrategyID   string
	Active       bool
	StopPercent  float64 // Distance from the favorable extreme, in percent
	EntryPrice   float64
	HighestPrice float64 // Ratcheted high (LONG)
	LowestPrice  float64 // Ratcheted low (SHORT)
	StopPrice    float64
	PositionType PositionType
}

// Strategy is a strategy record as reported by the trading server.
type Strategy struct {
	ID            string
	Symbol        string
	Type          string
	Active        bool
	CurrentSignal string
	PositionSize  float64
	PositionType  PositionType
	EntryPrice    float64
	StopPercent   float64
	PnL           float64
}

// -----------------------------------------------------------------------------
// Account / Market Types
// -----------------------------------------------------------------------------

// Performance summarizes recent trading results.
type Performance struct {
	Percent   float64
	WinRate   float64
	AvgProfit float64
}

// Account is the account snapshot shown on the dashboard header.
type Account struct {
	PortfolioValue  float64
	BuyingPower     float64
	Cash            float64
	Equity          float64
	PortfolioChange float64
	Performance     *Performance
}

// SymbolQuote is one row of the symbol list.
type SymbolQuote struct {
	Symbol    string
	Price     float64
	Change24h float64
	Volume24h float64
	MarketCap float64
}

// Position is an open position snapshot.
type Position struct {
	Symbol         string
	Qty            float64
	AvgEntryPrice  float64
	CurrentPrice   float64
	MarketValue    float64
	UnrealizedPL   float64
	UnrealizedPLPC float64
}

// Trade is an executed trade record.
type Trade struct {
	ID              uuid.UUID
	Symbol          string
	Side            string
	Qty             float64
	Price           float64
	TransactionTime int64
	Strategy        string
	PnL             float64
}
