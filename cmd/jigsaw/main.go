package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"

	"github.com/bodgit/jigsaw"
	"github.com/bodgit/jigsaw/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var styles = map[jigsaw.Severity]lipgloss.Style{
	jigsaw.Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
	jigsaw.Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB300")).Bold(true),
	jigsaw.Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935")).Bold(true),
}

func notify(s jigsaw.Severity, msg string) {
	fmt.Fprintln(os.Stderr, styles[s].Render(msg))
}

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("verbose") {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

func loadConfig(c *cli.Context) (jigsaw.Config, error) {
	cfg := jigsaw.DefaultConfig()
	if file := c.String("config"); file != "" {
		var err error
		if cfg, err = jigsaw.LoadConfig(file); err != nil {
			return cfg, err
		}
	}

	if c.IsSet("dir") {
		cfg.Store.Dir = c.String("dir")
	}
	if c.IsSet("driver") {
		cfg.Store.Drivers = c.StringSlice("driver")
	}
	if c.IsSet("redis") {
		cfg.Store.Redis = c.String("redis")
	}
	if c.IsSet("colors") {
		cfg.Colors = c.Int("colors")
	}

	return cfg, cfg.Validate()
}

// open returns a Jigsaw backed by the configured store. The returned
// function closes both.
func open(c *cli.Context) (*jigsaw.Jigsaw, func(), error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}

	s, err := store.Open(c.Context, cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Opened store", zap.String("driver", s.Driver()))

	j, err := jigsaw.New(cfg, s, logger, jigsaw.NotifierFunc(notify))
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	return j, func() {
		j.Close()
		s.Close()
		logger.Sync()
	}, nil
}

func summary(state jigsaw.State) string {
	if state.Grid == nil {
		return state.Status.String()
	}
	return fmt.Sprintf("%s: %d by %d, %d pieces, created %s", state.Status, state.Grid.Rows, state.Grid.Cols, state.Grid.Len(), state.Grid.CreatedAt().Format("2006-01-02 15:04:05"))
}

func main() {
	app := cli.NewApp()

	app.Name = "jigsaw"
	app.Usage = "Jigsaw puzzle tile generator"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			EnvVars: []string{"JIGSAW_CONFIG"},
			Usage:   "path to YAML configuration",
		},
		&cli.StringFlag{
			Name:    "dir",
			EnvVars: []string{"JIGSAW_DIR"},
			Value:   cwd,
			Usage:   "directory for the saved puzzle",
		},
		&cli.StringSliceFlag{
			Name:    "driver",
			EnvVars: []string{"JIGSAW_DRIVER"},
			Usage:   "storage backend to try, in order of preference",
		},
		&cli.StringFlag{
			Name:    "redis",
			EnvVars: []string{"JIGSAW_REDIS"},
			Usage:   "redis server address",
		},
		&cli.IntFlag{
			Name:  "colors",
			Usage: "reduce each tile to at most this many colors",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "slice",
			Usage:       "Generate a puzzle from an image",
			Description: "The puzzle replaces any saved puzzle.",
			ArgsUsage:   "FILE",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "out",
					Usage: "write the tiles to this directory",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				j, closer, err := open(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer closer()

				candidate, err := jigsaw.CandidateFromFile(c.Args().First())
				if err != nil {
					return cli.Exit(err, 1)
				}

				state, err := j.Select(c.Context, candidate)
				if err != nil {
					return cli.Exit(err, 1)
				}
				if state.Status != jigsaw.Ready {
					return cli.Exit(state.Err, 1)
				}

				if out := c.String("out"); out != "" {
					if err := jigsaw.WriteTiles(out, *state.Grid); err != nil {
						return cli.Exit(err, 1)
					}
				}

				j.Wait()

				if state = j.State(); state.Warning != nil {
					return cli.Exit(state.Warning, 2)
				}

				fmt.Println(summary(state))

				return nil
			},
		},
		{
			Name:        "show",
			Usage:       "Show the saved puzzle",
			Description: "",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "out",
					Usage: "write the tiles to this directory",
				},
			},
			Action: func(c *cli.Context) error {
				j, closer, err := open(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer closer()

				state := j.Mount(c.Context)
				if state.Err != nil {
					return cli.Exit(state.Err, 1)
				}

				if out := c.String("out"); out != "" && state.Grid != nil {
					if err := jigsaw.WriteTiles(out, *state.Grid); err != nil {
						return cli.Exit(err, 1)
					}
				}

				fmt.Println(summary(state))

				return nil
			},
		},
		{
			Name:        "clear",
			Usage:       "Remove the saved puzzle",
			Description: "",
			Action: func(c *cli.Context) error {
				j, closer, err := open(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer closer()

				if state := j.ClearSaved(c.Context); state.Warning != nil {
					return cli.Exit(state.Warning, 1)
				}

				return nil
			},
		},
		{
			Name:        "scan",
			Usage:       "Generate puzzles for every image in a directory",
			Description: "Tiles for each image are written to a directory of the same name under the output directory. The saved puzzle is not changed.",
			ArgsUsage:   "DIRECTORY",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "out",
					Usage:    "write the tiles under this directory",
					Required: true,
				},
				&cli.IntFlag{
					Name:  "workers",
					Value: runtime.NumCPU(),
					Usage: "number of images to process at once",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				logger, err := newLogger(c)
				if err != nil {
					return cli.Exit(err, 1)
				}
				defer logger.Sync()

				cfg, err := loadConfig(c)
				if err != nil {
					return cli.Exit(err, 1)
				}

				p, err := jigsaw.NewPipeline(cfg, logger)
				if err != nil {
					return cli.Exit(err, 1)
				}

				if err := p.Scan(c.Context, c.Args().First(), c.String("out"), c.Int("workers")); err != nil {
					return cli.Exit(err, 1)
				}

				return nil
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
