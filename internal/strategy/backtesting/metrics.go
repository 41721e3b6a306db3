package backtesting

import (
	"math"

	"algoTrader/internal/domain"
	"algoTrader/internal/portfolio"
)

// Metrics summarises a backtest.
type Metrics struct {
	InitialCapital float64
	FinalValue     float64
	TotalReturn    float64 // FinalValue - InitialCapital
	TotalReturnPct float64
	SharpeRatio    float64
	MaxDrawdown    float64 // Percent, <= 0
	TotalTrades    int     // Entries plus exits
	RoundTrips     int     // Entry/exit pairs counted by WinRate
	WinRate        float64 // Percent of round trips whose exit value beat the entry value
	Commission     float64 // Total fees paid
}

func computeMetrics(pf *portfolio.Portfolio, equity []domain.EquityPoint, trades []domain.TradeRecord, fees, periodsPerYear float64) Metrics {
	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Equity
	}
	wins, losses := PositionalWinLoss(trades)
	m := Metrics{
		InitialCapital: pf.InitialCapital(),
		FinalValue:     pf.TotalValue(),
		TotalReturn:    pf.TotalPNL(),
		TotalReturnPct: pf.TotalPNLPct(),
		SharpeRatio:    SharpeRatio(StepReturns(values), periodsPerYear),
		MaxDrawdown:    MaxDrawdown(values),
		TotalTrades:    len(trades),
		RoundTrips:     wins + losses,
		Commission:     fees,
	}
	if m.RoundTrips > 0 {
		m.WinRate = float64(wins) / float64(m.RoundTrips) * 100
	}
	return m
}

// StepReturns returns equity[i]/equity[i-1]-1 for consecutive samples. A zero
// previous value contributes a 0 return.
func StepReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// SharpeRatio is mean/sample-stdev of returns scaled by sqrt(periodsPerYear).
// Fewer than two returns or a zero deviation gives 0.
func SharpeRatio(returns []float64, periodsPerYear float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(sq / float64(n-1))
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}
	return mean / stdDev * math.Sqrt(periodsPerYear)
}

// MaxDrawdown returns the worst decline from a running peak, in percent
// (a non-positive number). An empty curve gives 0.
func MaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}
	peak := equity[0]
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

// PositionalWinLoss pairs trades by position in the log: every even-indexed
// record is an entry and the next one its exit. An exit worth more than its
// entry is a win. This only holds for a single-symbol log without overlapping
// positions, which is what the engine produces; use analytics.AnalyzeRoundTrips
// for anything else.
func PositionalWinLoss(trades []domain.TradeRecord) (wins, losses int) {
	for i := 0; i+1 < len(trades); i += 2 {
		if trades[i+1].Value > trades[i].Value {
			wins++
		} else {
			losses++
		}
	}
	return wins, losses
}
