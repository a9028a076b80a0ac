package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/redhatinsights/inicascade/internal/conf"
	"github.com/redhatinsights/inicascade/internal/ini"
	"github.com/redhatinsights/inicascade/internal/l10n"
)

// Version is set at build time.
var Version = "dev"

const sessionKey = "session"

// session carries what every command needs once the configuration is read.
type session struct {
	config   conf.Config
	logger   *slog.Logger
	registry *ini.Registry
	fileName string
}

func (s *session) handle(opts ...ini.LoadOption) *ini.Handle {
	return s.registry.Instance(s.fileName, s.config.SettingsRoot, opts...)
}

func sessionFrom(ctx *cli.Context) *session {
	return ctx.App.Metadata[sessionKey].(*session)
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "inicascade"
	app.Version = Version
	app.Usage = l10n.T("inspect and edit layered settings files")
	app.HideHelpCommand = true
	app.Metadata = map[string]interface{}{}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: l10n.T("read tool configuration from `FILE`"),
			Value: conf.DefaultPath,
		},
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   l10n.T("settings root `DIR`"),
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   l10n.T("settings file `NAME` relative to the root"),
			Value:   ini.DefaultFileName,
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: l10n.T("store merged tables in `DIR`"),
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: l10n.T("always parse the input files"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: l10n.T("log `LEVEL` (debug, info, warn or error)"),
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:      "get",
			Usage:     l10n.T("Print the value of a setting"),
			ArgsUsage: "BLOCK KEY",
			Action:    getAction,
		},
		{
			Name:   "dump",
			Usage:  l10n.T("Print the merged settings"),
			Action: dumpAction,
		},
		{
			Name:      "set",
			Usage:     l10n.T("Change a setting and save the file"),
			ArgsUsage: "BLOCK KEY VALUE...",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "array",
					Usage: l10n.T("store the values as an array"),
				},
				&cli.BoolFlag{
					Name:  "override",
					Usage: l10n.T("save into the first override directory"),
				},
				&cli.BoolFlag{
					Name:  "append",
					Usage: l10n.T("save the append variant into the first override directory"),
				},
			},
			Action: setAction,
		},
		{
			Name:   "inputs",
			Usage:  l10n.T("List the input files and the cache state"),
			Action: inputsAction,
		},
		{
			Name:   "clear-cache",
			Usage:  l10n.T("Remove the cache file of the settings file"),
			Action: clearCacheAction,
		},
		{
			Name:      "pack",
			Usage:     l10n.T("Write the packed variant of a settings file"),
			ArgsUsage: "FILE",
			Action:    packAction,
		},
		{
			Name:   "watch",
			Usage:  l10n.T("Reload the settings file whenever an input changes"),
			Action: watchAction,
		},
	}

	app.Before = beforeAction
	return app
}

// beforeAction reads the configuration, applies the global flags on top
// of it and prepares the registry.
func beforeAction(c *cli.Context) error {
	path := c.String("config")
	source := &conf.ConfigSource{Path: path, DropInDir: path + ".d"}
	config, err := source.Read()
	if err != nil {
		return cli.Exit(l10n.T("cannot read configuration: %v", err), 1)
	}

	if c.IsSet("root") {
		config.SettingsRoot = c.String("root")
	}
	if c.IsSet("cache-dir") {
		config.CacheDir = c.String("cache-dir")
	}
	if c.Bool("no-cache") {
		config.UseCache = false
	}
	if c.IsSet("log-level") {
		level, ok := conf.ParseLevel(c.String("log-level"))
		if !ok {
			return cli.Exit(l10n.T("unknown log level: %v", c.String("log-level")), 1)
		}
		config.LogLevel = level
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: config.LogLevel}))
	logger.Debug("configuration loaded", "config", path, "root", config.SettingsRoot, "cache", config.CacheDir)

	c.App.Metadata[sessionKey] = &session{
		config:   config,
		logger:   logger,
		registry: ini.NewRegistry(config.RegistryOptions(logger)...),
		fileName: c.String("file"),
	}
	return nil
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
