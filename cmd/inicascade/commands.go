package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/redhatinsights/inicascade/internal/ini"
	"github.com/redhatinsights/inicascade/internal/l10n"
)

// getAction prints a setting. Array items are printed one per line.
func getAction(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit(l10n.T("expected BLOCK and KEY"), 1)
	}
	block, key := c.Args().Get(0), c.Args().Get(1)

	lookup := sessionFrom(c).handle().Variable(block, key)
	switch lookup.Status {
	case ini.LookupMissingBlock:
		return cli.Exit(l10n.T("block %v is not defined", block), 1)
	case ini.LookupMissingKey:
		return cli.Exit(l10n.T("%v is not defined in block %v", key, block), 1)
	}

	if lookup.Value.IsArray() {
		for _, item := range lookup.Value.Items() {
			fmt.Fprintln(c.App.Writer, item)
		}
		return nil
	}
	fmt.Fprintln(c.App.Writer, lookup.Value.String())
	return nil
}

// dumpAction prints the merged table. A terminal gets an aligned listing,
// anything else gets the settings file format.
func dumpAction(c *cli.Context) error {
	h := sessionFrom(c).handle()
	if !isTerminal(c.App.Writer) {
		if _, err := h.WriteTo(c.App.Writer); err != nil {
			return cli.Exit(l10n.T("cannot write settings: %v", err), 1)
		}
		return nil
	}
	writeAligned(c.App.Writer, h.Table())
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeAligned(w io.Writer, table *ini.Table) {
	names := table.Names()
	if i := slices.Index(names, ""); i > 0 {
		names = append([]string{""}, slices.Delete(names, i, i+1)...)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, name := range names {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		if name != "" {
			fmt.Fprintf(tw, "[%s]\n", name)
		}
		b := table.Block(name)
		for _, key := range b.Keys() {
			v, _ := b.Get(key)
			if !v.IsArray() {
				fmt.Fprintf(tw, "  %s\t%s\n", key, v.String())
				continue
			}
			items := v.Items()
			if len(items) == 0 {
				fmt.Fprintf(tw, "  %s[]\t\n", key)
			}
			for _, item := range items {
				fmt.Fprintf(tw, "  %s[]\t%s\n", key, item)
			}
		}
	}
	_ = tw.Flush()
}

// setAction changes one setting and saves the whole table.
func setAction(c *cli.Context) error {
	if c.Args().Len() < 3 {
		return cli.Exit(l10n.T("expected BLOCK, KEY and VALUE"), 1)
	}
	if c.Bool("override") && c.Bool("append") {
		return cli.Exit(l10n.T("--override and --append cannot be used together"), 1)
	}
	args := c.Args().Slice()
	block, key, values := args[0], args[1], args[2:]

	var value ini.Value
	switch {
	case c.Bool("array"):
		value = ini.Array(values...)
	case len(values) == 1:
		value = ini.Scalar(values[0])
	default:
		return cli.Exit(l10n.T("use --array to store more than one value"), 1)
	}

	opts := ini.SaveOptions{}
	switch {
	case c.Bool("override"):
		opts.Override = ini.OverrideFile
	case c.Bool("append"):
		opts.Override = ini.OverrideAppend
	}

	h := sessionFrom(c).handle(ini.WithCache(false))
	h.SetVariable(block, key, value)
	if err := h.Save(opts); err != nil {
		return cli.Exit(l10n.T("cannot save settings: %v", err), 1)
	}
	fmt.Fprintln(c.App.Writer, l10n.T("saved %v", h.Destination(opts)))
	return nil
}

// inputsAction lists the files merged into the table, lowest precedence
// first, followed by the cache state.
func inputsAction(c *cli.Context) error {
	h := sessionFrom(c).handle()
	inputs := h.Inputs()

	fmt.Fprintln(c.App.Writer, l10n.TN("%d input file", "%d input files", uint32(len(inputs)), len(inputs)))
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, input := range inputs {
		kind := l10n.T("override")
		if input.Base {
			kind = l10n.T("base")
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", kind, input.ModTime.Format(time.RFC3339), input.Path)
	}
	_ = tw.Flush()

	fmt.Fprintln(c.App.Writer, l10n.T("charset: %v", h.Charset()))
	fmt.Fprintln(c.App.Writer, l10n.T("cache: %v", h.CacheState()))
	if path := h.CachePath(); path != "" {
		fmt.Fprintln(c.App.Writer, l10n.T("cache file: %v", path))
	}
	return nil
}

func clearCacheAction(c *cli.Context) error {
	h := sessionFrom(c).handle()
	path := h.CachePath()
	if path == "" {
		fmt.Fprintln(c.App.Writer, l10n.T("cache is not in use"))
		return nil
	}
	h.ResetCache()
	fmt.Fprintln(c.App.Writer, l10n.T("removed %v", path))
	return nil
}

// packAction writes the packed variant of FILE. Relative paths are taken
// from the settings root.
func packAction(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit(l10n.T("expected FILE"), 1)
	}
	path := c.Args().First()
	if !filepath.IsAbs(path) {
		path = filepath.Join(sessionFrom(c).config.SettingsRoot, path)
	}
	if err := ini.Pack(path); err != nil {
		return cli.Exit(l10n.T("cannot pack %v: %v", path, err), 1)
	}
	fmt.Fprintln(c.App.Writer, l10n.T("wrote %v", path+ini.PackedSuffix))
	return nil
}

// watchAction reloads the settings file on every change to the settings
// root or an override directory until interrupted.
func watchAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := sessionFrom(c)
	h := s.handle()
	err := h.Watch(ctx, func(h *ini.Handle) {
		names := make([]string, 0, len(h.Inputs()))
		for _, input := range h.Inputs() {
			names = append(names, input.Path)
		}
		fmt.Fprintln(c.App.Writer, l10n.T("reloaded %v from %v", h.FileName(), strings.Join(names, ", ")))
	})
	if err != nil {
		return cli.Exit(l10n.T("cannot watch %v: %v", h.FileName(), err), 1)
	}
	s.logger.Info("watching settings", "file", h.FileName(), "root", h.RootDir())

	<-ctx.Done()
	return nil
}
