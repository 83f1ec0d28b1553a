package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trainingdesk/internal/checklist/importer"
	"trainingdesk/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

func courseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "course",
		Usage:    "Course id the template belongs to",
		Required: true,
	}
}

var templateCommand = &cli.Command{
	Name:  "template",
	Usage: "Manage per-course checklist templates",
	Subcommands: []*cli.Command{
		{
			Name:      "import",
			Usage:     "Save a template from a .yaml file or an .xlsx spreadsheet",
			ArgsUsage: "<file>",
			Flags: []cli.Flag{
				courseFlag(),
				&cli.Float64Flag{
					Name:  "min-confidence",
					Usage: "Refuse spreadsheet imports scoring below this",
					Value: importer.DefaultMinConfidence,
				},
				&cli.BoolFlag{
					Name:  "force",
					Usage: "Save a spreadsheet import regardless of its confidence",
				},
				&cli.BoolFlag{
					Name:  "dry-run",
					Usage: "Print what would be saved",
				},
			},
			Action: importTemplate,
		},
		{
			Name:   "export",
			Usage:  "Print a course template as YAML",
			Flags:  []cli.Flag{courseFlag()},
			Action: exportTemplate,
		},
	},
}

func readPhases(c *cli.Context, path string) ([]types.Phase, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return types.ParsePhasesYAML(data)

	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()

		result, err := importer.ImportWorkbook(f)
		if err != nil {
			return nil, err
		}

		pp.Println(result)

		if result.Confidence < c.Float64("min-confidence") && !c.Bool("force") {
			return nil, fmt.Errorf("import confidence %.2f is below %.2f, check the phases above and pass --force to save anyway",
				result.Confidence, c.Float64("min-confidence"))
		}
		return result.Phases, nil
	}

	return nil, fmt.Errorf("unsupported template file %q, use .yaml or .xlsx", path)
}

func importTemplate(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("template file is required")
	}

	phases, err := readPhases(c, path)
	if err != nil {
		return err
	}

	if c.Bool("dry-run") {
		pp.Println(phases)
		return nil
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

	_, err = svc.engine.SaveTemplate(c.Context, c.String("course"), phases)
	return err
}

func exportTemplate(c *cli.Context) error {
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

	template, err := svc.engine.Template(c.Context, c.String("course"))
	if err != nil {
		return err
	}

	data, err := types.MarshalPhasesYAML(template.Phases)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(data)
	return err
}
