package cmd

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"provably-fair-backend/internal/fairness"
	"provably-fair-backend/internal/services"
)

// errMismatch makes the process exit non-zero when a round fails to verify.
var errMismatch = errors.New("round does not verify")

func newVerifyCmd() *cobra.Command {
	var (
		secretHex   string
		commitment  string
		req         services.VerifyRequest
		game        string
		configJSON  string
		resultJSON  string
		houseEdge   float64
		target      float64
		over        bool
		targetMulti float64
		rows        int
		risk        string
		width       int
		height      int
		mines       int
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute a round from a revealed server seed",
		Long: `Recompute a round from a revealed server seed and compare it with the
claimed result hash and/or decoded result. Nothing is read from a server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := hex.DecodeString(secretHex)
			if err != nil {
				return fmt.Errorf("decode --secret: %w", err)
			}

			tag, err := fairness.ParseGameTag(game)
			if err != nil {
				return err
			}
			req.GameTag = tag

			if configJSON != "" {
				if err := json.Unmarshal([]byte(configJSON), &req.Config); err != nil {
					return fmt.Errorf("decode --config: %w", err)
				}
			} else {
				req.Config = fairness.GameConfig{
					HouseEdge:        houseEdge,
					Target:           target,
					Over:             over,
					TargetMultiplier: targetMulti,
					Rows:             rows,
					Risk:             fairness.RiskLevel(risk),
					Width:            width,
					Height:           height,
					MineCount:        mines,
				}
			}

			if resultJSON != "" {
				var claimed fairness.Outcome
				if err := json.Unmarshal([]byte(resultJSON), &claimed); err != nil {
					return fmt.Errorf("decode --result: %w", err)
				}
				req.ClaimedResult = &claimed
			}

			report, err := services.VerifyOffline(secret, commitment, req)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Match {
				return errMismatch
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&secretHex, "secret", "", "revealed server seed, hex")
	f.StringVar(&commitment, "commitment", "", "commitment hash published before play")
	f.StringVar(&req.SeedID, "seed-id", "", "server seed id")
	f.StringVar(&req.ClientSeed, "client-seed", "", "client seed")
	f.Uint64Var(&req.Nonce, "nonce", 0, "round nonce")
	f.StringVar(&game, "game", "", "game tag: dice, limbo, plinko, minesweeper, baccarat")
	f.StringVar(&configJSON, "config", "", "game config as JSON; overrides the individual config flags")
	f.StringVar(&req.ClaimedHash, "claimed-hash", "", "result hash to check")
	f.StringVar(&resultJSON, "result", "", "decoded result JSON to check")

	f.Float64Var(&houseEdge, "house-edge", 0, "house edge in [0, 1)")
	f.Float64Var(&target, "target", 0, "dice target")
	f.BoolVar(&over, "over", false, "dice wins above the target")
	f.Float64Var(&targetMulti, "target-multiplier", 0, "limbo target multiplier")
	f.IntVar(&rows, "rows", 0, "plinko rows")
	f.StringVar(&risk, "risk", "", "plinko risk: low, medium, high")
	f.IntVar(&width, "width", 0, "minesweeper board width")
	f.IntVar(&height, "height", 0, "minesweeper board height")
	f.IntVar(&mines, "mines", 0, "minesweeper mine count")

	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("seed-id")
	_ = cmd.MarkFlagRequired("game")

	return cmd
}
