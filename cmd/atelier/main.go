package main

import (
	"os"

	"github.com/spf13/cobra"

	"atelier/internal/interfaces/cli/migrate"
	"atelier/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atelier",
		Short: "Atelier - subscription and entitlement synchronization engine",
		Long:  `Atelier keeps local subscription state, tier entitlements, and the payment ledger synchronized with the external billing provider.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
