package fairness

// Outcome holds exactly one decoded game result.
type Outcome struct {
	Dice        *DiceOutcome     `json:"dice,omitempty"`
	Limbo       *LimboOutcome    `json:"limbo,omitempty"`
	Plinko      *PlinkoOutcome   `json:"plinko,omitempty"`
	Minesweeper *MinesOutcome    `json:"minesweeper,omitempty"`
	Baccarat    *BaccaratOutcome `json:"baccarat,omitempty"`
}

// Decode validates cfg for tag and runs the matching decoder on src.
func Decode(tag GameTag, src Source, cfg GameConfig) (Outcome, error) {
	if err := cfg.Validate(tag); err != nil {
		return Outcome{}, err
	}

	var out Outcome
	switch tag {
	case GameDice:
		r := DecodeDice(src, cfg)
		out.Dice = &r
	case GameLimbo:
		r := DecodeLimbo(src, cfg)
		out.Limbo = &r
	case GamePlinko:
		r := DecodePlinko(src, cfg)
		out.Plinko = &r
	case GameMinesweeper:
		r := DecodeMines(src, cfg)
		out.Minesweeper = &r
	case GameBaccarat:
		r := DecodeBaccarat(src, cfg)
		out.Baccarat = &r
	}
	return out, nil
}

// Compute decodes the round described by the inputs from a fresh stream.
func Compute(serverSeed []byte, clientSeed string, nonce uint64, tag GameTag, cfg GameConfig) (Outcome, error) {
	return Decode(tag, NewStream(serverSeed, clientSeed, nonce, tag), cfg)
}

// Summary is the outcome shown to callers that must not learn hidden state
// before the seed is revealed. Single-shot games are returned whole; mine
// positions are withheld.
func (o Outcome) Summary() Outcome {
	if o.Minesweeper == nil {
		return o
	}
	m := *o.Minesweeper
	m.Cells = nil
	m.Mines = nil
	return Outcome{Minesweeper: &m}
}
