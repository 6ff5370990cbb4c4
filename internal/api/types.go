package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// flexTime is a timestamp that accepts epoch seconds, epoch milliseconds, or
// common string forms, normalized to epoch milliseconds.
type flexTime int64

func (t *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				*t = flexTime(parsed.UnixMilli())
				return nil
			}
		}
		// Unparseable strings map to zero; callers drop zero-time points.
		*t = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f < 1e11 {
		// Epoch seconds
		*t = flexTime(int64(f * 1000))
	} else {
		*t = flexTime(int64(f))
	}
	return nil
}

// Millis returns the timestamp in epoch milliseconds.
func (t flexTime) Millis() int64 { return int64(t) }

// wireCandle is one OHLCV bar as sent by the server. OHLC fields are pointers
// so that a missing field is distinguishable from a legitimate zero.
type wireCandle struct {
	Timestamp flexTime `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    float64  `json:"volume"`
}

// wireSymbol is one row of GET /symbols. The endpoint returns either objects
// or plain symbol strings; both forms must be accepted.
type wireSymbol struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	MarketCap float64 `json:"market_cap"`
}

func (s *wireSymbol) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &s.Symbol)
	}

	type plain wireSymbol
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = wireSymbol(p)
	return nil
}

// wireAccount is the GET /account response.
type wireAccount struct {
	PortfolioValue  float64 `json:"portfolio_value"`
	BuyingPower     float64 `json:"buying_power"`
	Cash            float64 `json:"cash"`
	Equity          float64 `json:"equity"`
	PortfolioChange float64 `json:"portfolio_change"`
	Performance     *struct {
		Percent   float64 `json:"percent"`
		WinRate   float64 `json:"win_rate"`
		AvgProfit float64 `json:"avg_profit"`
	} `json:"performance"`
}

// wireHistoryPoint is one row of GET /account/history.
type wireHistoryPoint struct {
	Timestamp flexTime `json:"timestamp"`
	Value     float64  `json:"value"`
	Signal    string   `json:"signal,omitempty"`
}

// wireHistoryColumns is the legacy column-oriented form of the same payload.
type wireHistoryColumns struct {
	Timestamps []flexTime `json:"timestamps"`
	Values     []float64  `json:"values"`
}

// wireSignal is one row of GET /strategies/signals.
type wireSignal struct {
	Timestamp   flexTime `json:"timestamp"`
	Action      string   `json:"action"`
	StrategyID  string   `json:"strategy_id"`
	Price       float64  `json:"price"`
	Description string   `json:"description"`
}

// wireStrategy is one row of GET /strategies.
type wireStrategy struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Type          string  `json:"type"`
	Active        bool    `json:"active"`
	CurrentSignal string  `json:"current_signal"`
	PositionSize  float64 `json:"position_size"`
	PositionType  string  `json:"position_type"`
	EntryPrice    float64 `json:"entry_price"`
	StopPercent   float64 `json:"stop_percent"`
	PnL           float64 `json:"pnl"`
}

// wirePosition is one row of GET /positions.
type wirePosition struct {
	Symbol         string  `json:"symbol"`
	Qty            float64 `json:"qty"`
	AvgEntryPrice  float64 `json:"avg_entry_price"`
	CurrentPrice   float64 `json:"current_price"`
	MarketValue    float64 `json:"market_value"`
	UnrealizedPL   float64 `json:"unrealized_pl"`
	UnrealizedPLPC float64 `json:"unrealized_plpc"`
}

// wireTrade is one row of GET /trades.
type wireTrade struct {
	ID              string   `json:"id"`
	Symbol          string   `json:"symbol"`
	Side            string   `json:"side"`
	Qty             float64  `json:"qty"`
	Price           float64  `json:"price"`
	TransactionTime flexTime `json:"transaction_time"`
	Strategy        string   `json:"strategy"`
	PnL             float64  `json:"pnl"`
}

// ackResponse is the generic {success, message} control response.
type ackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// tradingStatusResponse is the GET /trading/status response.
type tradingStatusResponse struct {
	IsTrading bool `json:"is_trading"`
}

// Settings holds the server-side dashboard settings.
type Settings struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Paper     bool   `json:"is_paper"`
	Notify    bool   `json:"notifications_enabled"`
}

// CreateStrategyRequest is the POST /strategies payload. Params carries
// strategy-specific tuning (atr_period, macd_fast, ...), flattened server-side.
type CreateStrategyRequest struct {
	Symbol       string         `json:"symbol"`
	Type         string         `json:"type"`
	Capital      float64        `json:"capital,omitempty"`
	RiskPerTrade float64        `json:"risk_per_trade,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}
