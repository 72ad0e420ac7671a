package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/kanso-habits/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-habits/internal/config"
	"github.com/comitanigiacomo/kanso-habits/internal/core/calendar"
	"github.com/comitanigiacomo/kanso-habits/internal/core/services"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type options struct {
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "kansoctl",
		Short:         "Maintenance commands for the kanso habits database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "dotenv file to load before the environment")

	root.AddCommand(newMigrateCmd(opts), newSummaryCmd(opts), newHeatmapCmd(opts))
	return root
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the PostgreSQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.EnsureSchema(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newSummaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <user-id> <YYYY-MM>",
		Short: "Print the month summary of a user as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := calendar.ParseMonth(args[1])
			if err != nil {
				return err
			}

			stats, closeFn, err := statsService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			summary, err := stats.MonthSummary(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newHeatmapCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "heatmap <user-id> <year>",
		Short: "Print the yearly heatmap of a user as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[1])
			if err != nil || year < 1970 {
				return fmt.Errorf("invalid year %q", args[1])
			}

			stats, closeFn, err := statsService(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			heatmap, err := stats.YearHeatmap(cmd.Context(), args[0], year)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), heatmap)
		},
	}
}

func connect(ctx context.Context, opts *options) (*config.Config, *sqlx.DB, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, db, nil
}

// statsService reads straight from PostgreSQL, without caches.
func statsService(ctx context.Context, opts *options) (*services.StatsService, func(), error) {
	cfg, db, err := connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	stats := services.NewStatsService(
		repository.NewPostgresHabitRepository(db),
		repository.NewPostgresCompletionRepository(db),
		services.NoopSummaryCache{},
		calendar.NewYearDays(cfg.Location),
	)
	return stats, func() { db.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
