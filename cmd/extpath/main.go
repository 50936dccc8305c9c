package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/extpath/internal/config"
	"github.com/standardbeagle/extpath/internal/debug"
	"github.com/standardbeagle/extpath/internal/version"
)

var Version = version.String()

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	rootFlag := c.String("root")

	// The default config name is looked up inside the requested root
	explicit := ""
	if c.IsSet("config") {
		explicit = configPath
	}

	cfg, err := config.LoadWithRoot(explicit, rootFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	// An explicit config file names its own directory as root unless --root says otherwise
	if rootFlag != "" && explicit != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if v := c.String("manifest"); v != "" {
		cfg.Manifest = v
	}
	if v := c.String("browser"); v != "" {
		cfg.Browser = v
	}
	if v := c.String("mode"); v != "" {
		cfg.Mode = v
	}
	if v := c.String("out"); v != "" {
		cfg.OutDir = v
	}
	if v := c.String("plan"); v != "" {
		cfg.Plan = v
	}
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if c.IsSet("workers") {
		cfg.Performance.Workers = c.Int("workers")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:                   "extpath",
		Usage:                  "Rewrite resource paths in browser extension API calls to their built locations",
		Version:                Version,
		UseShortOptionHandling: true,
		Writer:                 stdout,
		ErrWriter:              stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   config.ConfigFileName,
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:    "manifest",
				Aliases: []string{"m"},
				Usage:   "Path of manifest.json relative to the root",
			},
			&cli.StringFlag{
				Name:  "browser",
				Usage: "Target browser (chrome, firefox, edge, ...)",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "Build mode (development, production, none)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output directory for rewritten files",
			},
			&cli.StringFlag{
				Name:  "plan",
				Usage: "Output plan file (TOML or JSON) used instead of planning from the manifest",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Resolve files matching glob patterns (e.g., --include 'src/**/*.ts')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip files matching glob patterns (e.g., --exclude '**/fixtures/**')",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Parallel file workers (0 = auto)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Write debug logging to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				debug.EnableDebug = "true"
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Rewrite source files into the output directory",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stdout",
						Usage: "Print rewritten code instead of writing files",
					},
					&cli.BoolFlag{
						Name:  "strict",
						Usage: "Exit with an error when any warning is reported",
					},
				},
				Action: resolveCommand,
			},
			{
				Name:      "refs",
				Usage:     "List resource references and diagnostics as JSON",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "unresolved",
						Usage: "Only list references without a built output",
					},
				},
				Action: refsCommand,
			},
			{
				Name:   "watch",
				Usage:  "Resolve everything, then re-resolve on source and manifest changes",
				Action: watchCommand,
			},
			{
				Name:  "plan",
				Usage: "Print the output table the resolver uses",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: planCommand,
			},
		},
	}
}

func main() {
	defer debug.CloseDebugLog()

	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}
