// Package cli contains the tfbuffer command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	flagConfig        = "config"
	flagDebug         = "debug"
	flagOut           = "out"
	flagDir           = "dir"
	flagBag           = "bag"
	flagTransforms    = "transforms"
	flagCacheDuration = "cache-duration"
	flagSeed          = "seed"
	flagFrames        = "frames"
	flagUpdates       = "updates"
	flagQueries       = "queries"
	flagTolerance     = "tolerance"
	flagParallel      = "parallel"
	flagFixed         = "fixed"
	flagSourceTime    = "source-time"
	flagTable         = "table"
)

func newApp() *cli.App {
	return &cli.App{
		Name:            "tfbuffer",
		Usage:           "build, query and cross-check transform buffers",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: setupAction,
		After:  syncAction,
		Commands: []*cli.Command{
			{
				Name:      "generate",
				Usage:     "generate a random transform tree with lookups answered by this buffer",
				UsageText: "tfbuffer generate --out <dir> [other options]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagOut,
						Required: true,
						Usage:    "output directory for the fixture files",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Usage: "random seed",
						Value: defaultGeneratorConfig.Seed,
					},
					&cli.IntFlag{
						Name:  flagFrames,
						Usage: "number of frames below odom",
						Value: defaultGeneratorConfig.Frames,
					},
					&cli.IntFlag{
						Name:  flagUpdates,
						Usage: "number of dynamic updates",
						Value: defaultGeneratorConfig.Updates,
					},
					&cli.IntFlag{
						Name:  flagQueries,
						Usage: "number of lookups of each kind",
						Value: defaultGeneratorConfig.Queries,
					},
				},
				Action: GenerateAction,
			},
			{
				Name:      "replay",
				Usage:     "turn the /tf and /tf_static topics of a ROS bag into fixture files",
				UsageText: "tfbuffer replay --bag <file> --out <dir> [other options]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagBag,
						Required: true,
						Usage:    "ROS bag to read",
					},
					&cli.PathFlag{
						Name:     flagOut,
						Required: true,
						Usage:    "output directory for the fixture files",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Usage: "random seed for query sampling",
						Value: defaultGeneratorConfig.Seed,
					},
					&cli.IntFlag{
						Name:  flagQueries,
						Usage: "number of lookups of each kind",
						Value: defaultGeneratorConfig.Queries,
					},
				},
				Action: ReplayAction,
			},
			{
				Name:      "verify",
				Usage:     "check the lookups of a fixture directory against this buffer",
				UsageText: "tfbuffer verify --dir <dir> [other options]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagDir,
						Required: true,
						Usage:    "fixture directory",
					},
					&cli.Float64Flag{
						Name:  flagTolerance,
						Usage: "absolute tolerance per component",
						Value: defaultVerifyConfig.Tolerance,
					},
					&cli.IntFlag{
						Name:  flagParallel,
						Usage: "concurrent lookups, 0 for one per CPU",
					},
				},
				Action: VerifyAction,
			},
			{
				Name:      "lookup",
				Usage:     "look up the pose of a source frame in a target frame",
				UsageText: "tfbuffer lookup --transforms <file> <target> <source> [time]",
				ArgsUsage: "<target> <source> [time]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagTransforms,
						Required: true,
						Usage:    "transforms fixture file to load",
					},
					&cli.DurationFlag{
						Name:  flagCacheDuration,
						Usage: "override the configured cache duration",
					},
					&cli.StringFlag{
						Name:  flagFixed,
						Usage: "fixed frame, enables a lookup across two times",
					},
					&cli.Int64Flag{
						Name:  flagSourceTime,
						Usage: "source time in nanoseconds when --fixed is given",
					},
				},
				Action: LookupAction,
			},
			{
				Name:      "frames",
				Usage:     "describe every frame of a transforms file",
				UsageText: "tfbuffer frames --transforms <file> [--table]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagTransforms,
						Required: true,
						Usage:    "transforms fixture file to load",
					},
					&cli.DurationFlag{
						Name:  flagCacheDuration,
						Usage: "override the configured cache duration",
					},
					&cli.BoolFlag{
						Name:  flagTable,
						Usage: "print a table instead of YAML",
					},
				},
				Action: FramesAction,
			},
		},
	}
}

// NewApp returns the tfbuffer CLI application writing to the given outputs.
func NewApp(out, errOut io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
