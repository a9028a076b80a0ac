package ini

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	base := []RegistryOption{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithCacheDir(filepath.Join(t.TempDir(), "cache")),
		WithNoCacheAdvised(func() bool { return false }),
	}
	return NewRegistry(append(base, opts...)...)
}

// flatten turns a table into plain maps for cmp.Diff. Scalars become
// strings, arrays []string.
func flatten(t *Table) map[string]map[string]any {
	out := make(map[string]map[string]any, t.Len())
	for _, name := range t.Names() {
		b := t.Block(name)
		m := make(map[string]any, b.Len())
		for _, key := range b.Keys() {
			v, _ := b.Get(key)
			if v.IsArray() {
				m[key] = v.Items()
			} else {
				m[key] = v.String()
			}
		}
		out[name] = m
	}
	return out
}
