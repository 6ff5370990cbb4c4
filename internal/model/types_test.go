package model

import "testing"

func TestTimeframeShape(t *testing.T) {
	tests := []struct {
		tf     Timeframe
		points int
		stepMs int64
	}{
		{Timeframe1D, 24, 3_600_000},
		{Timeframe1W, 28, 21_600_000},
		{Timeframe1M, 30, 86_400_000},
		{Timeframe3M, 90, 86_400_000},
		{Timeframe1Y, 52, 604_800_000},
	}

	for _, tt := range tests {
		if got := tt.tf.Points(); got != tt.points {
			t.Errorf("%s.Points() = %d, want %d", tt.tf, got, tt.points)
		}
		if got := tt.tf.StepMillis(); got != tt.stepMs {
			t.Errorf("%s.StepMillis() = %d, want %d", tt.tf, got, tt.stepMs)
		}
	}
}

func TestTimeframeUnknownFallsBackTo1D(t *testing.T) {
	tf := Timeframe("5y")

	if tf.Valid() {
		t.Error("Valid() = true for unknown timeframe")
	}
	if got := tf.Points(); got != 24 {
		t.Errorf("Points() = %d, want 24 (1d fallback)", got)
	}
	if got := tf.StepMillis(); got != 3_600_000 {
		t.Errorf("StepMillis() = %d, want 3600000 (1d fallback)", got)
	}
}

func TestPointTime(t *testing.T) {
	p := TimePoint{Timestamp: 1700000000000, Value: 42.5}
	if p.Time() != 1700000000000 {
		t.Errorf("TimePoint.Time() = %d, want 1700000000000", p.Time())
	}

	c := CandlePoint{Timestamp: 1700000000000, Open: 1, High: 2, Low: 0.5, Close: 1.5}
	if c.Time() != 1700000000000 {
		t.Errorf("CandlePoint.Time() = %d, want 1700000000000", c.Time())
	}
}
