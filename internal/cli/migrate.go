package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildtrack/buildtrack-backend/internal/auth"
	"github.com/buildtrack/buildtrack-backend/internal/tracker"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the auth and tracker tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			d, err := e.openDB()
			if err != nil {
				return err
			}
			if err := auth.Init(d, e.cfg.Database.Schema); err != nil {
				return err
			}
			if _, err := tracker.Init(d, e.cfg.Database.Schema); err != nil {
				return err
			}
			fmt.Printf("%s tables migrated (%d tracker models)\n", okLabel("OK"), len(tracker.Models()))
			return nil
		},
	}
}
