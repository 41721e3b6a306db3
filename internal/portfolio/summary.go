package portfolio

// PositionSummary is the per-position detail of a Summary.
type PositionSummary struct {
	Quantity     float64
	EntryPrice   float64
	CurrentPrice float64
	Value        float64
	PNL          float64
	PNLPct       float64
}

// Summary is a point-in-time snapshot of the ledger.
type Summary struct {
	InitialCapital float64
	Cash           float64
	PositionsValue float64
	TotalValue     float64
	TotalPNL       float64
	TotalPNLPct    float64
	NumPositions   int
	Positions      map[string]PositionSummary
}

// GetSummary computes a snapshot from live state.
func (p *Portfolio) GetSummary() Summary {
	s := Summary{
		InitialCapital: p.InitialCapital(),
		Cash:           p.Cash(),
		PositionsValue: p.PositionsValue(),
		TotalValue:     p.TotalValue(),
		TotalPNL:       p.TotalPNL(),
		TotalPNLPct:    p.TotalPNLPct(),
		NumPositions:   p.NumPositions(),
		Positions:      make(map[string]PositionSummary, len(p.positions)),
	}
	for symbol, pos := range p.positions {
		s.Positions[symbol] = PositionSummary{
			Quantity:     pos.Quantity,
			EntryPrice:   pos.EntryPrice,
			CurrentPrice: pos.CurrentPrice,
			Value:        pos.Value(),
			PNL:          pos.UnrealizedPNL(),
			PNLPct:       pos.UnrealizedPNLPct(),
		}
	}
	return s
}
