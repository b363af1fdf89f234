package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	_ "github.com/lib/pq"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/migration"
	productdomain "github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the product schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, r *migration.Runner, _ []string) error {
			return r.Up(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Revert every applied migration",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, r *migration.Runner, _ []string) error {
			return r.Down(ctx)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "steps <n>",
		Short: "Move n migrations up, or down when n is negative",
		Args:  cobra.ExactArgs(1),
		RunE: withRunner(func(ctx context.Context, r *migration.Runner, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return r.Steps(ctx, n)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "goto <revision>",
		Short: "Migrate up or down to a revision id, base or head",
		Args:  cobra.ExactArgs(1),
		RunE: withRunner(func(ctx context.Context, r *migration.Runner, args []string) error {
			target, err := migration.VersionFor(args[0])
			if err != nil {
				return err
			}
			current, err := r.Current(ctx)
			if err != nil {
				return err
			}
			if target < current.Version {
				return r.DownTo(ctx, args[0])
			}
			return r.UpTo(ctx, args[0])
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied revision",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(ctx context.Context, r *migration.Runner, _ []string) error {
			state, err := r.Current(ctx)
			if err != nil {
				return err
			}
			dirty := ""
			if state.Dirty {
				dirty = " (dirty)"
			}
			fmt.Printf("%s version=%d%s\n", state.Revision, state.Version, dirty)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Record a version without running migrations, -1 clears it",
		Args:  cobra.ExactArgs(1),
		RunE: withRunner(func(ctx context.Context, r *migration.Runner, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return r.Force(ctx, version)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revisions",
		Short: "List the revision chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tREVISION\tDOWN REVISION\tDESCRIPTION")
			for _, rev := range migration.Revisions() {
				down := rev.DownRevision
				if down == "" {
					down = migration.Base
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rev.Version, rev.ID, down, rev.Description)
			}
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "indexes",
		Short: "List the indexes of the product table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			indexes, err := migration.Indexes(cmd.Context(), conn, productdomain.Product{}.TableName())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMETHOD\tCOLUMNS\tUNIQUE")
			for _, idx := range indexes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", idx.Name, idx.Method, strings.Join(idx.Columns, ","), idx.Unique)
			}
			return w.Flush()
		},
	})

	return cmd
}

type runnerFunc func(ctx context.Context, r *migration.Runner, args []string) error

func withRunner(fn runnerFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		conn, err := openDatabase()
		if err != nil {
			return err
		}
		defer conn.Close()

		log, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer log.Sync()

		runner, err := migration.NewRunner(conn, log)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), runner, args)
	}
}

func openDatabase() (*sql.DB, error) {
	cfg := db.FromAppConfig(config.Load())
	if cfg.Type != db.DialectPostgres {
		return nil, fmt.Errorf("migrations run on postgres, DATABASE_TYPE is %q", cfg.Type)
	}
	conn, err := sql.Open("postgres", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return conn, nil
}
