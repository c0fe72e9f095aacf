package main

import (
	"fmt"
	"os"

	"provably-fair-backend/cmd/fairctl/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
