package fairness

import (
	"fmt"
	"math"

	"provably-fair-backend/internal/apperr"
)

type GameTag string

const (
	GameDice        GameTag = "dice"
	GameLimbo       GameTag = "limbo"
	GamePlinko      GameTag = "plinko"
	GameMinesweeper GameTag = "minesweeper"
	GameBaccarat    GameTag = "baccarat"
)

// GameTags lists every supported tag in a stable order.
var GameTags = []GameTag{GameDice, GameLimbo, GamePlinko, GameMinesweeper, GameBaccarat}

func ParseGameTag(s string) (GameTag, error) {
	for _, tag := range GameTags {
		if string(tag) == s {
			return tag, nil
		}
	}
	return "", apperr.WithMetadata(apperr.CodeInvalidConfig,
		fmt.Sprintf("unknown game tag: %q", s), map[string]string{"game_tag": s})
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const (
	MaxBoardCells        = 1024
	MinLimboTarget       = 1.01
	MaxNonce      uint64 = math.MaxInt64
)

// GameConfig is the per-round configuration. Only the fields relevant to the
// round's game tag are read.
type GameConfig struct {
	HouseEdge float64 `json:"house_edge,omitempty"`

	// dice
	Target float64 `json:"target,omitempty"`
	Over   bool    `json:"over,omitempty"`

	// limbo
	TargetMultiplier float64 `json:"target_multiplier,omitempty"`

	// plinko
	Rows int       `json:"rows,omitempty"`
	Risk RiskLevel `json:"risk,omitempty"`

	// minesweeper
	Width     int `json:"width,omitempty"`
	Height    int `json:"height,omitempty"`
	MineCount int `json:"mine_count,omitempty"`
}

// Validate rejects configuration the decoder for tag cannot accept.
func (c GameConfig) Validate(tag GameTag) error {
	switch tag {
	case GameDice:
		if err := validateHouseEdge(c.HouseEdge, false); err != nil {
			return err
		}
		if c.Target != 0 {
			if math.IsNaN(c.Target) || c.Target <= 0 || c.Target >= 100 {
				return invalidConfig("dice target must be in (0,100)")
			}
			target, ok := diceTargetUnits(c.Target)
			if !ok {
				return invalidConfig("dice target must be a multiple of 0.01")
			}
			if diceWinningRolls(target, c.Over) < 1 {
				return invalidConfig("dice target leaves no winning roll")
			}
		}
	case GameLimbo:
		if err := validateHouseEdge(c.HouseEdge, false); err != nil {
			return err
		}
		if c.TargetMultiplier != 0 && c.TargetMultiplier < MinLimboTarget {
			return invalidConfig(fmt.Sprintf("limbo target multiplier must be at least %.2f", MinLimboTarget))
		}
	case GamePlinko:
		if err := validateHouseEdge(c.HouseEdge, true); err != nil {
			return err
		}
		if _, ok := plinkoTables[plinkoKey{rows: c.Rows, risk: c.Risk}]; !ok {
			return invalidConfig(fmt.Sprintf("no plinko table for rows=%d risk=%q", c.Rows, c.Risk))
		}
	case GameMinesweeper:
		if c.Width < 1 || c.Height < 1 {
			return invalidConfig("board width and height must be positive")
		}
		if c.Width > MaxBoardCells || c.Height > MaxBoardCells || c.Width*c.Height > MaxBoardCells {
			return invalidConfig(fmt.Sprintf("board exceeds %d cells", MaxBoardCells))
		}
		if c.MineCount < 1 || c.MineCount >= c.Width*c.Height {
			return invalidConfig("mine count must be in [1, width*height)")
		}
	case GameBaccarat:
	default:
		return invalidConfig(fmt.Sprintf("unknown game tag: %q", tag))
	}
	return nil
}

func validateHouseEdge(edge float64, allowZero bool) error {
	if math.IsNaN(edge) || edge >= 1 || edge < 0 {
		return invalidConfig("house edge must be below 1 and not negative")
	}
	if edge == 0 && !allowZero {
		return invalidConfig("house edge must be in (0,1)")
	}
	return nil
}

func invalidConfig(msg string) error {
	return apperr.New(apperr.CodeInvalidConfig, msg)
}
