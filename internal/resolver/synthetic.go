package resolver

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rickgao/tradedeck/internal/model"
)

// Base prices for well-known assets so synthetic charts land in a plausible
// range. Anything unknown starts at 100.
var syntheticBasePrices = map[string]float64{
	"BTC":  65000,
	"ETH":  3000,
	"SOL":  150,
	"DOGE": 0.15,
	"ADA":  0.45,
}

const (
	syntheticDefaultBase = 100
	syntheticStepPct     = 0.01 // Max per-step drift, fraction of price
	syntheticWickPct     = 0.005

	portfolioBaseValue = 10000
	portfolioStepPct   = 0.004
	// The 1d portfolio view is denser than the candle grid: 48 half-hour points.
	portfolioDayPoints = 48
)

func syntheticBase(symbol string) float64 {
	asset, _, _ := strings.Cut(symbol, "/")
	if base, ok := syntheticBasePrices[strings.ToUpper(asset)]; ok {
		return base
	}
	return syntheticDefaultBase
}

// SyntheticCandles generates a randomized candle series shaped for the
// timeframe: the point count and spacing match what a live fetch would return,
// ending at the current time.
func SyntheticCandles(symbol string, timeframe model.Timeframe) []model.CandlePoint {
	count := timeframe.Points()
	step := timeframe.StepMillis()
	end := time.Now().UnixMilli()
	start := end - int64(count-1)*step

	price := syntheticBase(symbol)
	candles := make([]model.CandlePoint, count)
	for i := 0; i < count; i++ {
		open := price
		drift := (rand.Float64()*2 - 1) * syntheticStepPct
		close := open * (1 + drift)

		high := max(open, close) * (1 + rand.Float64()*syntheticWickPct)
		low := min(open, close) * (1 - rand.Float64()*syntheticWickPct)

		candles[i] = model.CandlePoint{
			Timestamp: start + int64(i)*step,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    price * (50 + rand.Float64()*100),
		}
		price = close
	}
	return candles
}

// SyntheticPortfolio generates a randomized account-equity series for the
// timeframe.
func SyntheticPortfolio(timeframe model.Timeframe) []model.TimePoint {
	count := timeframe.Points()
	step := timeframe.StepMillis()
	if timeframe == model.Timeframe1D {
		count = portfolioDayPoints
		step = 30 * 60 * 1000
	}

	end := time.Now().UnixMilli()
	start := end - int64(count-1)*step

	value := portfolioBaseValue * (0.95 + rand.Float64()*0.1)
	points := make([]model.TimePoint, count)
	for i := 0; i < count; i++ {
		points[i] = model.TimePoint{
			Timestamp: start + int64(i)*step,
			Value:     value,
		}
		value *= 1 + (rand.Float64()*2-1)*portfolioStepPct
	}
	return points
}

// SyntheticTick produces the next simulated price after last, used by the
// demo-mode live tick.
func SyntheticTick(last float64) float64 {
	if last <= 0 {
		last = syntheticDefaultBase
	}
	return last * (1 + (rand.Float64()*2-1)*syntheticStepPct)
}
