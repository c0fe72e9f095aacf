package fairness

type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MinesOutcome struct {
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	MineCount int          `json:"mine_count"`
	Cells     []int        `json:"cells"`
	Mines     []Coordinate `json:"mines"`
}

// DecodeMines shuffles every cell index and takes the first MineCount as
// mines, in shuffle order. Cell i sits at (i mod width, i / width).
func DecodeMines(src Source, cfg GameConfig) MinesOutcome {
	perm := Shuffle(src, cfg.Width*cfg.Height)
	cells := append([]int(nil), perm[:cfg.MineCount]...)

	mines := make([]Coordinate, len(cells))
	for i, c := range cells {
		mines[i] = Coordinate{X: c % cfg.Width, Y: c / cfg.Width}
	}
	return MinesOutcome{
		Width:     cfg.Width,
		Height:    cfg.Height,
		MineCount: cfg.MineCount,
		Cells:     cells,
		Mines:     mines,
	}
}
