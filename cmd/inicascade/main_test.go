package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/redhatinsights/inicascade/internal/conf"
	"github.com/redhatinsights/inicascade/internal/ini"
)

type fixture struct {
	root     string
	cacheDir string
	config   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	for _, name := range []string{conf.EnvSettingsRoot, conf.EnvCacheDir, conf.EnvLogLevel, ini.NoCacheEnv} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	f := fixture{
		root:     filepath.Join(dir, "settings"),
		cacheDir: filepath.Join(dir, "cache"),
		config:   filepath.Join(dir, "config.toml"),
	}
	write(t, filepath.Join(f.root, "site.ini"), "[General]\nSiteName=Base\nTags[]=a\n")
	write(t, filepath.Join(f.root, "override", "site.ini.append"), "[General]\nSiteName=Override\nTags[]=b\n")
	return f
}

// run executes the app and returns stdout and the error passed to the exit
// handler, if any.
func (f fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	var exitErr error

	app := newApp()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(_ *cli.Context, err error) { exitErr = err }

	argv := append([]string{"inicascade", "--config", f.config, "--root", f.root, "--cache-dir", f.cacheDir}, args...)
	if err := app.Run(argv); err != nil && exitErr == nil {
		exitErr = err
	}
	return stdout.String(), exitErr
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestGet(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name        string
		args        []string
		expected    string
		expectError bool
	}{
		{name: "scalar", args: []string{"get", "General", "SiteName"}, expected: "Override\n"},
		{name: "array", args: []string{"get", "General", "Tags"}, expected: "a\nb\n"},
		{name: "missing block", args: []string{"get", "Nope", "SiteName"}, expectError: true},
		{name: "missing key", args: []string{"get", "General", "Nope"}, expectError: true},
		{name: "wrong arguments", args: []string{"get", "General"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.run(t, tt.args...)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestDump(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "dump")
	require.NoError(t, err)
	assert.Equal(t, "#?ini charset=\"utf8\"?\n\n[General]\nSiteName=Override\nTags[]=a\nTags[]=b\n", out)
}

func TestWriteAligned(t *testing.T) {
	table := ini.NewTable()
	table.Ensure("General").Set("SiteName", ini.Scalar("Prod"))
	table.Ensure("General").Set("Tags", ini.Array("a", "b"))
	table.Ensure("").Set("Top", ini.Scalar("1"))

	var buf bytes.Buffer
	writeAligned(&buf, table)

	expected := "  Top  1\n" +
		"\n" +
		"[General]\n" +
		"  SiteName  Prod\n" +
		"  Tags[]    a\n" +
		"  Tags[]    b\n"
	assert.Equal(t, expected, buf.String())
}

func TestSet(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "set", "--array", "--append", "General", "Tags", "c", "d")
	require.NoError(t, err)
	dest := filepath.Join(f.root, "override", "site.ini.append")
	assert.Equal(t, "saved "+dest+"\n", out)

	// Saved array items accumulate onto the base file's items.
	out, err = f.run(t, "get", "General", "Tags")
	require.NoError(t, err)
	assert.Equal(t, "a\nc\nd\n", out)

	backup, err := os.ReadFile(dest + ini.BackupSuffix)
	require.NoError(t, err)
	assert.Equal(t, "[General]\nSiteName=Override\nTags[]=b\n", string(backup))

	_, err = f.run(t, "set", "General", "SiteName", "x", "y")
	assert.Error(t, err)
	_, err = f.run(t, "set", "--override", "--append", "General", "SiteName", "x")
	assert.Error(t, err)
}

func TestInputsAndClearCache(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "inputs")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "2 input files", lines[0])
	assert.Contains(t, lines[1], filepath.Join(f.root, "site.ini"))
	assert.Contains(t, lines[1], "base")
	assert.Contains(t, lines[2], filepath.Join(f.root, "override", "site.ini.append"))
	assert.Equal(t, "charset: utf8", lines[3])
	assert.Equal(t, "cache: miss", lines[4])

	out, err = f.run(t, "inputs")
	require.NoError(t, err)
	assert.Contains(t, out, "cache: hit\n")

	out, err = f.run(t, "clear-cache")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "removed "+f.cacheDir), out)

	entries, err := os.ReadDir(f.cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	out, err = f.run(t, "--no-cache", "clear-cache")
	require.NoError(t, err)
	assert.Equal(t, "cache is not in use\n", out)
}

func TestPack(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "pack", "site.ini")
	require.NoError(t, err)
	packed := filepath.Join(f.root, "site.ini"+ini.PackedSuffix)
	assert.Equal(t, "wrote "+packed+"\n", out)
	assert.FileExists(t, packed)

	_, err = f.run(t, "pack", "missing.ini")
	assert.Error(t, err)
}

func TestGlobalFlags(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "--log-level", "LOUD", "dump")
	assert.Error(t, err)

	write(t, f.config, "not valid toml ===")
	_, err = f.run(t, "dump")
	assert.Error(t, err)
}
