package cmd

import (
	"crypto/rand"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"provably-fair-backend/internal/services"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 round signing key for SIGNING_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := services.GenerateSigningSeed(rand.Reader)
			if err != nil {
				return err
			}
			signer, err := services.NewSigner(seed)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"signing_key": seed,
				"public_key":  signer.PublicKeyHex(),
			})
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		secret     string
		operatorID string
		role       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if role != services.RoleOperator && role != services.RolePlayer {
				return errors.New("--role must be operator or player")
			}

			token, err := services.NewJWTService(secret).GenerateToken(operatorID, role, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"token": token})
		},
	}

	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "JWT secret (defaults to $JWT_SECRET)")
	f.StringVar(&operatorID, "operator-id", "", "subject of the token")
	f.StringVar(&role, "role", services.RoleOperator, "operator or player")
	f.DurationVar(&ttl, "ttl", services.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("operator-id")

	return cmd
}
