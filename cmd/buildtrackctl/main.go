package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buildtrack/buildtrack-backend/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "buildtrackctl",
		Short:         "Operator tools for the BuildTrack backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.DBHealthCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.ReparseCmd())
	rootCmd.AddCommand(cli.ExportCmd())
	rootCmd.AddCommand(cli.ImportProductsCmd())
	rootCmd.AddCommand(cli.PruneUploadsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
