package fairness

import "math"

// MaxMultiplier caps heavy-tailed multipliers.
const MaxMultiplier = 1_000_000.0

type LimboOutcome struct {
	Multiplier       float64 `json:"multiplier"`
	Clamped          bool    `json:"clamped,omitempty"`
	TargetMultiplier float64 `json:"target_multiplier,omitempty"`
	Win              bool    `json:"win"`
}

// DecodeLimbo applies (1-houseEdge)/x to one float draw. The theoretical
// return to player is 1-houseEdge for every target.
func DecodeLimbo(src Source, cfg GameConfig) LimboOutcome {
	return limboFromFloat(src.NextFloat01(), cfg)
}

func limboFromFloat(f float64, cfg GameConfig) LimboOutcome {
	var out LimboOutcome
	m := (1 - cfg.HouseEdge) / f
	switch {
	case f == 0 || math.IsInf(m, 0) || m > MaxMultiplier:
		out.Multiplier = MaxMultiplier
		out.Clamped = true
	case m < 1:
		out.Multiplier = 1
	default:
		out.Multiplier = m
	}

	if cfg.TargetMultiplier != 0 {
		out.TargetMultiplier = cfg.TargetMultiplier
		out.Win = out.Multiplier >= cfg.TargetMultiplier
	}
	return out
}
