package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"

	"github.com/youta-t/flarc"

	"github.com/bcrant/mlrun/pkg/domain/mlrun/db/postgres"
	"github.com/bcrant/mlrun/pkg/utils/kio"
	"github.com/bcrant/mlrun/pkg/utils/try"
)

type Flag struct {
	Database string `flag:"database" help:"Connection URI of the metadata database."`
	Schema   string `flag:"schema" help:"The path to the schema repository directory."`
}

const ARG_SCHEMA_DEST = "ARG_SCHEMA_DEST"

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		os.Interrupt, os.Kill,
	)
	defer cancel()

	cmd := try.To(flarc.NewCommand(
		"metadata database schema upgrader",
		Flag{
			Database: os.Getenv("MLRUND_DB_URI"),
			Schema:   os.Getenv("MLRUND_SCHEMA_REPOSITORY"),
		},
		flarc.Args{
			{
				Name: ARG_SCHEMA_DEST, Help: "The schema files are copied to this directory before upgrading.",
				Required: false, Repeatable: false,
			},
		},
		func(ctx context.Context, c flarc.Commandline[Flag], _ []any) error {
			flags := c.Flags()
			if flags.Database == "" {
				return errors.New("--database (or MLRUND_DB_URI) is required")
			}
			if flags.Schema == "" {
				return errors.New("--schema (or MLRUND_SCHEMA_REPOSITORY) is required")
			}

			if dest := c.Args()[ARG_SCHEMA_DEST]; len(dest) != 0 {
				logger.Println("copying schema files...")
				if err := kio.DirCopy(flags.Schema, dest[0]); err != nil {
					return err
				}
			}

			db, err := postgres.New(
				ctx, flags.Database,
				postgres.WithSchemaRepository(flags.Schema),
			)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := db.Schema().Version(ctx)
			if err != nil {
				return err
			}
			logger.Printf("current schema version: %d", version)

			if err := db.Schema().Upgrade(ctx); err != nil {
				return err
			}

			version, err = db.Schema().Version(ctx)
			if err != nil {
				return err
			}
			logger.Printf("schema is up to date at version %d", version)
			return nil
		},
	)).OrFatal(logger)

	os.Exit(flarc.Run(ctx, cmd))
}
