package api

import (
	"github.com/google/uuid"

	"github.com/rickgao/tradedeck/internal/model"
)

// toCandles converts wire candles to model candles, dropping any bar with a
// missing OHLC field or zero timestamp. A bar is stored whole or not at all.
func toCandles(wire []wireCandle) []model.CandlePoint {
	out := make([]model.CandlePoint, 0, len(wire))
	for _, w := range wire {
		if w.Timestamp.Millis() == 0 {
			continue
		}
		if w.Open == nil || w.High == nil || w.Low == nil || w.Close == nil {
			continue
		}
		out = append(out, model.CandlePoint{
			Timestamp: w.Timestamp.Millis(),
			Open:      *w.Open,
			High:      *w.High,
			Low:       *w.Low,
			Close:     *w.Close,
			Volume:    w.Volume,
		})
	}
	return out
}

func (w wireSymbol) toModel() model.SymbolQuote {
	return model.SymbolQuote{
		Symbol:    w.Symbol,
		Price:     w.Price,
		Change24h: w.Change24h,
		Volume24h: w.Volume24h,
		MarketCap: w.MarketCap,
	}
}

func (w wireAccount) toModel() model.Account {
	a := model.Account{
		PortfolioValue:  w.PortfolioValue,
		BuyingPower:     w.BuyingPower,
		Cash:            w.Cash,
		Equity:          w.Equity,
		PortfolioChange: w.PortfolioChange,
	}
	if w.Performance != nil {
		a.Performance = &model.Performance{
			Percent:   w.Performance.Percent,
			WinRate:   w.Performance.WinRate,
			AvgProfit: w.Performance.AvgProfit,
		}
	}
	return a
}

func (w wireSignal) toModel() model.Signal {
	return model.Signal{
		Timestamp:   w.Timestamp.Millis(),
		Action:      model.SignalAction(w.Action),
		StrategyID:  w.StrategyID,
		Price:       w.Price,
		Description: w.Description,
	}
}

func (w wireStrategy) toModel() model.Strategy {
	pt := model.PositionType(w.PositionType)
	if pt != model.PositionShort {
		pt = model.PositionLong
	}
	return model.Strategy{
		ID:            w.ID,
		Symbol:        w.Symbol,
		Type:          w.Type,
		Active:        w.Active,
		CurrentSignal: w.CurrentSignal,
		PositionSize:  w.PositionSize,
		PositionType:  pt,
		EntryPrice:    w.EntryPrice,
		StopPercent:   w.StopPercent,
		PnL:           w.PnL,
	}
}

func (w wirePosition) toModel() model.Position {
	return model.Position{
		Symbol:         w.Symbol,
		Qty:            w.Qty,
		AvgEntryPrice:  w.AvgEntryPrice,
		CurrentPrice:   w.CurrentPrice,
		MarketValue:    w.MarketValue,
		UnrealizedPL:   w.UnrealizedPL,
		UnrealizedPLPC: w.UnrealizedPLPC,
	}
}

func (w wireTrade) toModel() model.Trade {
	id, err := uuid.Parse(w.ID)
	if err != nil {
		// Server-side IDs are not always UUIDs; derive a stable one.
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(w.ID))
	}
	return model.Trade{
		ID:              id,
		Symbol:          w.Symbol,
		Side:            w.Side,
		Qty:             w.Qty,
		Price:           w.Price,
		TransactionTime: w.TransactionTime.Millis(),
		Strategy:        w.Strategy,
		PnL:             w.PnL,
	}
}
