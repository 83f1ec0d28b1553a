package main

import (
	"trainingdesk/internal/db"

	"github.com/urfave/cli/v2"
)

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "Apply the embedded database migrations",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "down",
			Usage: "Roll back this many migrations instead of migrating up",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		return db.Migrate(cfg.DatabaseURL, c.Int("down"), newLogger(cfg))
	},
}
