package analytics

import (
	"sort"
	"time"

	"algoTrader/internal/domain"
)

// quantityEpsilon absorbs float residue when lots are consumed.
const quantityEpsilon = 1e-12

// RoundTrip is one entry lot matched to the exit that closed it.
type RoundTrip struct {
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time
	Quantity   float64
	EntryValue float64
	ExitValue  float64
	PNL        float64
	ExitAction domain.TradeAction
}

// Holding is how long the lot was held.
func (r RoundTrip) Holding() time.Duration {
	return r.ExitTime.Sub(r.EntryTime)
}

// PerformanceMetrics holds round-trip statistics for a trade log
type PerformanceMetrics struct {
	RoundTrips    []RoundTrip
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64 // Percent
	GrossProfit   float64
	GrossLoss     float64 // <= 0
	NetProfit     float64
	ProfitFactor  float64 // GrossProfit / |GrossLoss|; 0 without losses
	AverageWin    float64
	AverageLoss   float64
	Expectancy    float64 // Average PNL per round trip

	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageHoldingTime   time.Duration

	ExitReasons     map[domain.TradeAction]int
	TotalCommission float64 // Sum of COMMISSION records in the log
	OpenQuantity    map[string]float64 // Entry quantity still unmatched per symbol
	UnmatchedExits  int                // Exits with nothing left to match
}

type lot struct {
	time     time.Time
	quantity float64
	unitCost float64
}

// AnalyzeRoundTrips matches exits to earlier entries of the same symbol in
// FIFO order, splitting lots on partial exits. Unlike the positional pairing
// used by the backtest engine, it is valid for logs that interleave symbols or
// scale in and out of positions. The log is processed in timestamp order;
// records with equal timestamps keep their relative order.
func AnalyzeRoundTrips(trades []domain.TradeRecord) *PerformanceMetrics {
	m := &PerformanceMetrics{
		ExitReasons:  make(map[domain.TradeAction]int),
		OpenQuantity: make(map[string]float64),
	}

	ordered := make([]domain.TradeRecord, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	open := make(map[string][]lot)
	for _, tr := range ordered {
		switch {
		case tr.Action == domain.ActionCommission:
			m.TotalCommission += tr.Value
		case tr.Action == domain.ActionBuy:
			if tr.Quantity <= 0 {
				continue
			}
			open[tr.Symbol] = append(open[tr.Symbol], lot{time: tr.Timestamp, quantity: tr.Quantity, unitCost: tr.Value / tr.Quantity})
		case tr.Action.IsExit():
			if tr.Quantity <= 0 {
				continue
			}
			m.ExitReasons[tr.Action]++
			open[tr.Symbol] = m.matchExit(open[tr.Symbol], tr)
		}
	}

	for symbol, lots := range open {
		for _, l := range lots {
			m.OpenQuantity[symbol] += l.quantity
		}
		if m.OpenQuantity[symbol] <= quantityEpsilon {
			delete(m.OpenQuantity, symbol)
		}
	}

	m.summarize()
	return m
}

// ExitActions returns the exit actions seen in the log, sorted by name.
func (m *PerformanceMetrics) ExitActions() []domain.TradeAction {
	out := make([]domain.TradeAction, 0, len(m.ExitReasons))
	for action := range m.ExitReasons {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *PerformanceMetrics) matchExit(lots []lot, exit domain.TradeRecord) []lot {
	remaining := exit.Quantity
	unitProceeds := exit.Value / exit.Quantity

	for remaining > quantityEpsilon && len(lots) > 0 {
		head := &lots[0]
		qty := head.quantity
		if remaining < qty {
			qty = remaining
		}
		entryValue := qty * head.unitCost
		exitValue := qty * unitProceeds
		m.RoundTrips = append(m.RoundTrips, RoundTrip{
			Symbol:     exit.Symbol,
			EntryTime:  head.time,
			ExitTime:   exit.Timestamp,
			Quantity:   qty,
			EntryValue: entryValue,
			ExitValue:  exitValue,
			PNL:        exitValue - entryValue,
			ExitAction: exit.Action,
		})
		head.quantity -= qty
		remaining -= qty
		if head.quantity <= quantityEpsilon {
			lots = lots[1:]
		}
	}
	if remaining > quantityEpsilon {
		m.UnmatchedExits++
	}
	return lots
}

func (m *PerformanceMetrics) summarize() {
	var consecutiveWins, consecutiveLosses int
	var holding time.Duration

	for _, rt := range m.RoundTrips {
		m.TotalTrades++
		m.NetProfit += rt.PNL
		holding += rt.Holding()
		if rt.PNL > 0 {
			m.WinningTrades++
			m.GrossProfit += rt.PNL
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			m.LosingTrades++
			m.GrossLoss += rt.PNL
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = consecutiveLosses
		}
	}

	if m.TotalTrades == 0 {
		return
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.Expectancy = m.NetProfit / float64(m.TotalTrades)
	m.AverageHoldingTime = holding / time.Duration(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AverageWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.GrossLoss / float64(m.LosingTrades)
	}
	if m.GrossLoss < 0 {
		m.ProfitFactor = m.GrossProfit / -m.GrossLoss
	}
}
