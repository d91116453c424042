package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buildtrack/buildtrack-backend/internal/export"
)

func ExportCmd() *cobra.Command {
	var userID, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's receipts to an XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			e, err := loadEnv()
			if err != nil {
				return err
			}
			store, err := e.openStorage()
			if err != nil {
				return err
			}

			rows, err := store.ExportRows(cmd.Context(), userID)
			if err != nil {
				return err
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := export.WriteReceipts(f, rows); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("%s wrote %d receipts to %s\n", okLabel("OK"), len(rows), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner user id")
	cmd.Flags().StringVarP(&out, "out", "o", "receipts.xlsx", "output file")
	return cmd
}
