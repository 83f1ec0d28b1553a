package main

import (
	"context"
	"fmt"

	"trainingdesk/internal/db"
	"trainingdesk/internal/seed"
	"trainingdesk/internal/store"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Sync the document type catalog, optionally with demo data",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "demo",
			Usage: "Also upsert sample students, instructors and a course template",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := newLogger(cfg)
		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logger.Info("connected to database")

		if err := seed.SeedDocumentTypes(ctx, store.NewDocumentTypeRepository(pool), logger); err != nil {
			return fmt.Errorf("failed to seed document types: %w", err)
		}

		if !c.Bool("demo") {
			return nil
		}

		return seed.SeedDemo(ctx, store.NewOwnerRepository(pool), store.NewChecklistTemplateRepository(pool), logger)
	},
}
