package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildtrack/buildtrack-backend/internal/filestore"
)

func PruneUploadsCmd() *cobra.Command {
	var (
		dryRun bool
		minAge time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune-uploads",
		Short: "Delete local upload files no receipt refers to",
		Long: `Deleting a receipt leaves its file on disk. This removes every file in
the local upload directory that no receipt row points at. Files younger than
--min-age are left alone, since an upload saves its file before the receipt
row exists. Only the local backend is supported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			files, err := e.openFiles(cmd.Context())
			if err != nil {
				return err
			}
			local, ok := files.(*filestore.Local)
			if !ok {
				return errors.New("prune-uploads needs UPLOAD_BACKEND=local")
			}
			store, err := e.openStorage()
			if err != nil {
				return err
			}

			referenced, err := store.ReceiptFilePaths(cmd.Context())
			if err != nil {
				return err
			}
			cutoff := time.Now().Add(-minAge)
			removed, total, err := pruneUnreferenced(cmd.Context(), cmd.OutOrStdout(), local, referenced, cutoff, dryRun)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d files unreferenced\n", removed, total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list files without deleting them")
	cmd.Flags().DurationVar(&minAge, "min-age", time.Hour, "skip files modified more recently than this")
	return cmd
}

// pruneUnreferenced removes (or with dryRun only reports) stored files
// missing from referenced and last modified before cutoff. It returns how
// many were unreferenced and how many files were looked at.
func pruneUnreferenced(ctx context.Context, w io.Writer, local *filestore.Local, referenced map[string]struct{}, cutoff time.Time, dryRun bool) (int, int, error) {
	paths, err := local.List()
	if err != nil {
		return 0, 0, err
	}

	var removed int
	for _, p := range paths {
		if _, keep := referenced[p]; keep {
			continue
		}
		mod, err := local.ModTime(p)
		if err != nil {
			fmt.Fprintf(w, "  %s %s: %v\n", failLabel("error"), p, err)
			continue
		}
		if mod.After(cutoff) {
			fmt.Fprintf(w, "  %s %s\n", warnLabel("too recent"), p)
			continue
		}
		if dryRun {
			fmt.Fprintf(w, "  %s %s\n", warnLabel("would remove"), p)
			removed++
			continue
		}
		if err := local.Remove(ctx, p); err != nil {
			fmt.Fprintf(w, "  %s %s: %v\n", failLabel("error"), p, err)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", okLabel("removed"), p)
		removed++
	}
	return removed, len(paths), nil
}
