package main

import (
	"errors"
	"fmt"
	"strings"

	"trainingdesk/internal/completeness"
	"trainingdesk/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

func ownerFlags(extra ...cli.Flag) []cli.Flag {
	return append(extra,
		&cli.StringFlag{
			Name:     "owner-id",
			Usage:    "Student or instructor id",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "kind",
			Usage: "student or instructor",
			Value: "student",
		},
	)
}

func ownerKindFlag(c *cli.Context) (types.OwnerKind, error) {
	kind := types.OwnerKind(strings.ToUpper(c.String("kind")))
	if !kind.Valid() {
		return "", fmt.Errorf("--kind must be student or instructor, got %q", c.String("kind"))
	}
	return kind, nil
}

var renameOwnerCommand = &cli.Command{
	Name:  "rename-owner",
	Usage: "Move an owner's document folder after a name change and rewrite stored keys",
	Flags: ownerFlags(
		&cli.StringFlag{Name: "from", Usage: "Previous name (or its slug) the folder was created under", Required: true},
		&cli.StringFlag{Name: "to", Usage: "New name or slug (default: the owner's current name)"},
	),
	Action: func(c *cli.Context) error {
		kind, err := ownerKindFlag(c)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		svc, err := openServices(c.Context, cfg, logger, true)
		if err != nil {
			return err
		}
		defer svc.Close()

		report, err := svc.registry.RenameOwner(c.Context, c.String("owner-id"), kind, c.String("from"), c.String("to"))
		if report != nil {
			pp.Println(report)
		}

		var partial *types.PartialRenameError
		if errors.As(err, &partial) {
			return fmt.Errorf("%w: run the same command again to retry", err)
		}
		return err
	},
}

var completenessCommand = &cli.Command{
	Name:  "completeness",
	Usage: "Report which required documents an owner is missing",
	Flags: ownerFlags(
		&cli.StringSliceFlag{
			Name:  "category",
			Usage: "Only these categories (default: every category the owner kind is asked for)",
		},
	),
	Action: func(c *cli.Context) error {
		kind, err := ownerKindFlag(c)
		if err != nil {
			return err
		}

		categories := completeness.CategoriesFor(kind)
		if requested := c.StringSlice("category"); len(requested) > 0 {
			categories = make([]types.DocumentCategory, 0, len(requested))
			for _, r := range requested {
				category := types.DocumentCategory(strings.ToUpper(r))
				if !category.Valid() {
					return fmt.Errorf("unknown category %q", r)
				}
				categories = append(categories, category)
			}
		}

		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		svc, err := openServices(c.Context, cfg, logger, false)
		if err != nil {
			return err
		}
		defer svc.Close()

		report, err := svc.evaluator.EvaluateCategories(c.Context, c.String("owner-id"), categories...)
		if err != nil {
			return err
		}

		pp.Println(report)
		return nil
	},
}
