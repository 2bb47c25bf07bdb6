package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/bodgit/pngpal"
	"github.com/bodgit/pngpal/indexed"
	"github.com/bodgit/pngpal/internal/config"
	"github.com/bodgit/pngpal/internal/logger"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	switch {
	case c.Bool("verbose"):
		return cfg, logger.New("debug", cfg.Logging.LogFile), nil
	case cfg.Logging.LogFile != "":
		return cfg, logger.NewWithFileConfig(cfg.Logging.Level, logger.DefaultFileConfig(cfg.Logging.LogFile), nil), nil
	default:
		return cfg, zap.NewNop(), nil
	}
}

func openLibrary(c *cli.Context, cfg *config.Config, logger *zap.Logger) (*pngpal.Library, error) {
	file := c.String("db")
	if file == "" {
		file = cfg.Library.Path
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, err
	}
	return pngpal.OpenLibrary(file, logger)
}

func newImage(c *cli.Context) error {
	if c.NArg() != 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	_, logger, err := setup(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logger.Sync()

	m, err := indexed.New(c.Int("width"), c.Int("height"))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := pngpal.NewEditor(m, c.Args().First(), logger).Save(""); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func info(c *cli.Context) error {
	if c.NArg() != 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	m, err := pngpal.LoadFile(c.Args().First())
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	fmt.Printf("%dx%d, %d colors\n", m.Width(), m.Height(), m.PaletteLen())
	for i, col := range m.Palette() {
		fmt.Printf("%3d %s %3d\n", i, col, m.Alpha(uint8(i)))
	}

	return nil
}

func scan(c *cli.Context) error {
	if c.NArg() != 1 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logger.Sync()

	l, err := openLibrary(c, cfg, logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer l.Close()

	workers := c.Int("workers")
	if workers == 0 {
		workers = cfg.Library.Workers
	}

	n, err := l.Scan(c.Args().First(), workers)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	fmt.Printf("%d images catalogued\n", n)

	return nil
}

func listPalettes(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logger.Sync()

	l, err := openLibrary(c, cfg, logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer l.Close()

	entries, err := l.Entries()
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Printf("%4d %-16s %3d colors %3d alpha %4d files %s\n", e.ID, name, len(e.Colors), len(e.Transparency), e.Sources, e.SHA1)
	}

	return nil
}

func exportPalette(c *cli.Context) error {
	if c.NArg() != 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	m, err := pngpal.LoadFile(c.Args().Get(0))
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := pngpal.ExportPalette(m, c.Args().Get(1)); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func importPalette(c *cli.Context) error {
	if c.NArg() != 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logger.Sync()

	l, err := openLibrary(c, cfg, logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer l.Close()

	if _, err := l.Import(c.Args().Get(0), c.Args().Get(1)); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func applyPalette(c *cli.Context) error {
	if c.NArg() != 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logger.Sync()

	l, err := openLibrary(c, cfg, logger)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer l.Close()

	file := c.Args().Get(1)
	m, err := pngpal.LoadFile(file)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	m, err = l.Apply(c.Args().Get(0), m)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	output := c.String("output")
	if output == "" {
		output = file
	}

	if err := pngpal.NewEditor(m, output, logger).Save(""); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func convert(c *cli.Context) error {
	if c.NArg() != 2 {
		cli.ShowCommandHelpAndExit(c, c.Command.Name, 1)
	}

	cfg, logger, err := setup(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer logger.Sync()

	colors := cfg.Convert.Colors
	if c.IsSet("colors") {
		colors = c.Int("colors")
	}
	dither := cfg.Convert.Dither
	if c.IsSet("dither") {
		dither = c.Bool("dither")
	}

	m, err := pngpal.ConvertFile(c.Args().Get(0), colors, dither)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	if err := pngpal.NewEditor(m, c.Args().Get(1), logger).Save(""); err != nil {
		return cli.NewExitError(err, 1)
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "pngpaltool"
	app.Usage = "Palette-based PNG maintenance utility"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to configuration file",
		},
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"PNGPAL_DB"},
			Usage:   "path to palette library database",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "new",
			Usage:     "Create a blank image",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "width",
					Value: indexed.DefaultSize,
					Usage: "image width",
				},
				&cli.IntFlag{
					Name:  "height",
					Value: indexed.DefaultSize,
					Usage: "image height",
				},
			},
			Action: newImage,
		},
		{
			Name:      "info",
			Usage:     "Show image dimensions and palette",
			ArgsUsage: "FILE",
			Action:    info,
		},
		{
			Name:      "scan",
			Usage:     "Catalogue the palettes of the images in a directory",
			ArgsUsage: "DIRECTORY",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "workers",
					Usage: "number of images read concurrently",
				},
			},
			Action: scan,
		},
		{
			Name:  "palette",
			Usage: "Manage the palette library",
			Subcommands: []*cli.Command{
				{
					Name:   "list",
					Usage:  "List the palettes in the library",
					Action: listPalettes,
				},
				{
					Name:      "export",
					Usage:     "Write the palette of an image to a RIFF palette file",
					ArgsUsage: "FILE OUTPUT",
					Action:    exportPalette,
				},
				{
					Name:      "import",
					Usage:     "Store a RIFF palette file in the library",
					ArgsUsage: "NAME FILE",
					Action:    importPalette,
				},
				{
					Name:      "apply",
					Usage:     "Replace the palette of an image with a library palette",
					ArgsUsage: "NAME FILE",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:    "output",
							Aliases: []string{"o"},
							Usage:   "write to `FILE` instead of replacing the image",
						},
					},
					Action: applyPalette,
				},
			},
		},
		{
			Name:      "convert",
			Usage:     "Convert a true-color image to a palette-based PNG",
			ArgsUsage: "INPUT OUTPUT",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:  "colors",
					Value: indexed.MaxColors,
					Usage: "maximum number of colors",
				},
				&cli.BoolFlag{
					Name:  "dither",
					Usage: "apply Floyd-Steinberg dithering",
				},
			},
			Action: convert,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
