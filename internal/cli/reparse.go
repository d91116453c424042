package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func ReparseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reparse <receiptId>",
		Short: "Run receipt parsing synchronously for one receipt",
		Long: `Sends the stored file through the extraction service again and waits for
the result. Line items from the new run are appended to any existing ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("receipt id: %w", err)
			}

			e, err := loadEnv()
			if err != nil {
				return err
			}
			store, err := e.openStorage()
			if err != nil {
				return err
			}
			files, err := e.openFiles(cmd.Context())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			receipt, err := store.GetReceipt(ctx, id, false)
			if err != nil {
				return err
			}
			if err := e.pipeline(files, store).Parse(ctx, receipt.ID, receipt.FilePath); err != nil {
				fmt.Printf("%s %s: %v\n", failLabel("FAILED"), receipt.FileName, err)
				return err
			}

			parsed, err := store.GetReceipt(ctx, id, true)
			if err != nil {
				return err
			}
			vendor := "(unknown vendor)"
			if parsed.Vendor != nil {
				vendor = *parsed.Vendor
			}
			total := "-"
			if parsed.TotalAmount != nil {
				total = parsed.TotalAmount.String()
			}
			fmt.Printf("%s %s: %s, total %s, %d line items\n",
				okLabel("PARSED"), receipt.FileName, vendor, total, len(parsed.LineItems))
			return nil
		},
	}
}
