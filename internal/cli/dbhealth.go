package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/buildtrack/buildtrack-backend/internal/config"
)

func DBHealthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check that the configured Postgres database is reachable",
		Long: `Connects with pgx directly (bypassing gorm), reports the server version
and how many tables exist in the configured schema.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if e.cfg.Database.Driver == config.DriverSQLite {
				return errors.New("dbhealth only checks postgres; DB_DRIVER is sqlite")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			conn, err := sql.Open("pgx", e.cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			defer conn.Close()

			start := time.Now()
			if err := conn.PingContext(ctx); err != nil {
				fmt.Printf("%s ping failed: %v\n", failLabel("FAIL"), err)
				return err
			}
			fmt.Printf("%s ping (%s)\n", okLabel("OK  "), time.Since(start).Round(time.Millisecond))

			var version string
			if err := conn.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
				return fmt.Errorf("query version: %w", err)
			}
			fmt.Printf("     %s\n", version)

			var tables int
			err = conn.QueryRowContext(ctx,
				"SELECT count(*) FROM information_schema.tables WHERE table_schema = $1",
				e.cfg.Database.Schema).Scan(&tables)
			if err != nil {
				return fmt.Errorf("count tables: %w", err)
			}
			if tables == 0 {
				fmt.Printf("%s schema %q has no tables; run buildtrackctl migrate\n", warnLabel("WARN"), e.cfg.Database.Schema)
				return nil
			}
			fmt.Printf("%s schema %q has %d tables\n", okLabel("OK  "), e.cfg.Database.Schema, tables)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "give up after this long")
	return cmd
}
