package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/buildtrack/buildtrack-backend/internal/productimport"
)

func ImportProductsCmd() *cobra.Command {
	var userID, path string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "import-products",
		Short: "Load a product catalog CSV for one user",
		Long: `Reads a CSV with a header row. "name" is required; "sku", "category",
"description", "unit_price" and "unit" are optional. Rows without a SKU get a
generated one. Importing the same file twice skips rows already present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || path == "" {
				return errors.New("--user and --file are required")
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := productimport.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			e, err := loadEnv()
			if err != nil {
				return err
			}
			store, err := e.openStorage()
			if err != nil {
				return err
			}

			res, err := productimport.Import(cmd.Context(), store, userID, rows)
			if verbose {
				for _, p := range res.Created {
					fmt.Printf("  %s %-12s %s\n", okLabel("+"), p.SKU, p.Name)
				}
				for _, r := range res.Skipped {
					fmt.Printf("  %s row %d %s\n", warnLabel("="), r.Line, r.Name)
				}
			}
			fmt.Printf("%d created, %d skipped\n", len(res.Created), len(res.Skipped))
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "owner user id")
	cmd.Flags().StringVarP(&path, "file", "f", "", "CSV file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every row")
	return cmd
}
