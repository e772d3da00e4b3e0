package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Waelalhamad/HydroQuest-Project/internal/config"
	db "github.com/Waelalhamad/HydroQuest-Project/internal/db"
	"github.com/Waelalhamad/HydroQuest-Project/internal/db/migrate"
)

func runMigrate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("migrate")
	path := fs.String("sqlite-path", envDefault("SQLITE_PATH", "data/hydroquest.db"), "SQLite database file")
	dryRun := fs.Bool("dry-run", false, "list pending migrations without applying them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conn, err := db.Open(ctx, config.Config{
		SQLitePath:   *path,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	if *dryRun {
		pending, err := migrate.Pending(ctx, conn)
		if err != nil {
			return err
		}
		for _, m := range pending {
			fmt.Fprintln(stdout, m.Filename())
		}
		fmt.Fprintf(stdout, "%d pending\n", len(pending))
		return nil
	}

	applied, err := migrate.Run(ctx, conn, slog.Default())
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintf(stdout, "%d migrations applied\n", applied)
	return nil
}
