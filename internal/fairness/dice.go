package fairness

import "math"

// DiceOutcomes is the number of distinct rolls, 0.00 through 99.99.
const DiceOutcomes = 10000

type DiceOutcome struct {
	Roll       float64 `json:"roll"`
	Target     float64 `json:"target,omitempty"`
	Over       bool    `json:"over,omitempty"`
	Win        bool    `json:"win"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// DecodeDice rolls a value in [0, 99.99] with two decimals. When a target is
// set the outcome also carries the win flag and the payout multiplier for
// the chosen side. The multiplier is priced on the number of rolls that
// actually win, so the return is 1-houseEdge for every target.
func DecodeDice(src Source, cfg GameConfig) DiceOutcome {
	roll := int(math.Floor(src.NextFloat01() * DiceOutcomes))
	out := DiceOutcome{Roll: float64(roll) / 100}
	if cfg.Target == 0 {
		return out
	}

	target, _ := diceTargetUnits(cfg.Target)
	out.Target = cfg.Target
	out.Over = cfg.Over
	if cfg.Over {
		out.Win = roll > target
	} else {
		out.Win = roll < target
	}
	out.Multiplier = (1 - cfg.HouseEdge) * DiceOutcomes / float64(diceWinningRolls(target, cfg.Over))
	return out
}

// diceTargetUnits converts a target to hundredths. ok is false when the
// target is not on the 0.01 grid.
func diceTargetUnits(target float64) (int, bool) {
	units := math.Round(target * 100)
	if math.Abs(target*100-units) > 1e-6 {
		return 0, false
	}
	return int(units), true
}

// diceWinningRolls counts the rolls that beat target, given in hundredths.
func diceWinningRolls(target int, over bool) int {
	if over {
		return DiceOutcomes - 1 - target
	}
	return target
}
