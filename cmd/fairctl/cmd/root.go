// Package cmd holds the fairctl commands: offline round verification and
// the key and token helpers operators need to run the API.
package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the fairctl root command. It is called once in main.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fairctl",
		Short:         "Provably fair round tooling",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(
		newVerifyCmd(),
		newKeygenCmd(),
		newTokenCmd(),
	)

	return rootCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
