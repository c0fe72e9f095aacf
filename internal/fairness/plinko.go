package fairness

type plinkoKey struct {
	rows int
	risk RiskLevel
}

// Payout tables, bin 0 (leftmost) to bin rows.
var plinkoTables = map[plinkoKey][]float64{
	{8, RiskLow}:     {5.6, 2.1, 1.1, 1, 0.5, 1, 1.1, 2.1, 5.6},
	{8, RiskMedium}:  {13, 3, 1.3, 0.7, 0.4, 0.7, 1.3, 3, 13},
	{8, RiskHigh}:    {29, 4, 1.5, 0.3, 0.2, 0.3, 1.5, 4, 29},
	{12, RiskLow}:    {10, 3, 1.6, 1.4, 1.1, 1, 0.5, 1, 1.1, 1.4, 1.6, 3, 10},
	{12, RiskMedium}: {33, 11, 4, 2, 1.1, 0.6, 0.3, 0.6, 1.1, 2, 4, 11, 33},
	{12, RiskHigh}:   {170, 24, 8.1, 2, 0.7, 0.2, 0.2, 0.2, 0.7, 2, 8.1, 24, 170},
	{16, RiskLow}:    {16, 9, 2, 1.4, 1.4, 1.2, 1.1, 1, 0.5, 1, 1.1, 1.2, 1.4, 1.4, 2, 9, 16},
	{16, RiskMedium}: {110, 41, 10, 5, 3, 1.5, 1, 0.5, 0.3, 0.5, 1, 1.5, 3, 5, 10, 41, 110},
	{16, RiskHigh}:   {1000, 130, 26, 9, 4, 2, 0.2, 0.2, 0.2, 0.2, 0.2, 2, 4, 9, 26, 130, 1000},
}

type PlinkoOutcome struct {
	Rows       int       `json:"rows"`
	Risk       RiskLevel `json:"risk"`
	Bin        int       `json:"bin"`
	Multiplier float64   `json:"multiplier"`
}

// PlinkoMultipliers returns a copy of the payout table for rows and risk.
func PlinkoMultipliers(rows int, risk RiskLevel) ([]float64, bool) {
	table, ok := plinkoTables[plinkoKey{rows: rows, risk: risk}]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), table...), true
}

// PlinkoProbabilities returns the selection probability of every bin:
// binomial C(rows,i)/2^rows, paying bins (multiplier >= 1) discounted by
// 1-houseEdge, then renormalized. Losing bins are not discounted.
func PlinkoProbabilities(rows int, multipliers []float64, houseEdge float64) []float64 {
	probs := make([]float64, rows+1)
	total := 0.0
	for i := range probs {
		p := binomial(rows, i) / float64(uint64(1)<<uint(rows))
		if multipliers[i] >= 1 {
			p *= 1 - houseEdge
		}
		probs[i] = p
		total += p
	}
	for i := range probs {
		probs[i] /= total
	}
	return probs
}

// DecodePlinko walks cumulative probabilities in bin order and picks the
// first bin whose cumulative probability reaches the draw.
func DecodePlinko(src Source, cfg GameConfig) PlinkoOutcome {
	table := plinkoTables[plinkoKey{rows: cfg.Rows, risk: cfg.Risk}]
	probs := PlinkoProbabilities(cfg.Rows, table, cfg.HouseEdge)
	bin := selectBin(probs, src.NextFloat01())
	return PlinkoOutcome{
		Rows:       cfg.Rows,
		Risk:       cfg.Risk,
		Bin:        bin,
		Multiplier: table[bin],
	}
}

func selectBin(probs []float64, draw float64) int {
	cum := 0.0
	for i, p := range probs {
		cum += p
		if cum >= draw {
			return i
		}
	}
	// rounding left the total just under the draw
	return len(probs) - 1
}

func binomial(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1.0
	for i := 1; i <= k; i++ {
		r = r * float64(n-k+i) / float64(i)
	}
	return r
}
