package conf

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/redhatinsights/inicascade/internal/ini"
)

// Helper functions for creating pointer values in DTO tests
func stringPtr(s string) *string { return &s }
func boolPtr(b bool) *bool       { return &b }

// clearEnv keeps the environment of the test runner out of Read.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvSettingsRoot, EnvCacheDir, EnvLogLevel} {
		t.Setenv(name, "")
	}
}

func defaults() Config {
	return Config{
		SettingsRoot:    "settings",
		CacheDir:        "var/cache/ini",
		UseCache:        true,
		UseTextCodec:    true,
		InternalCharset: "utf8",
		OverrideDirs:    []string{"override"},
		LogLevel:        slog.LevelWarn,
	}
}

func TestConfig_Update(t *testing.T) {
	tests := []struct {
		name     string
		base     Config
		overlay  configDTO
		expected Config
	}{
		{
			name: "overlay replaces values",
			base: Config{
				SettingsRoot: "settings",
				LogLevel:     slog.LevelInfo,
			},
			overlay: configDTO{
				SettingsRoot: stringPtr("/srv/site/settings"),
				LogLevel:     stringPtr("DEBUG"),
			},
			expected: Config{
				SettingsRoot: "/srv/site/settings",
				LogLevel:     slog.LevelDebug,
			},
		},
		{
			name: "overlay partial update",
			base: Config{
				SettingsRoot: "settings",
				CacheDir:     "var/cache/ini",
				UseCache:     true,
			},
			overlay: configDTO{
				UseCache: boolPtr(false),
			},
			expected: Config{
				SettingsRoot: "settings",
				CacheDir:     "var/cache/ini",
				UseCache:     false,
			},
		},
		{
			name: "empty overlay does nothing",
			base: Config{
				SettingsRoot: "settings",
				OverrideDirs: []string{"override"},
			},
			overlay: configDTO{},
			expected: Config{
				SettingsRoot: "settings",
				OverrideDirs: []string{"override"},
			},
		},
		{
			name: "override list is replaced, not merged",
			base: Config{
				OverrideDirs: []string{"override"},
			},
			overlay: configDTO{
				OverrideDirs: &[]string{"siteaccess/admin", "override"},
			},
			expected: Config{
				OverrideDirs: []string{"siteaccess/admin", "override"},
			},
		},
		{
			name: "unknown log level is ignored",
			base: Config{
				LogLevel: slog.LevelError,
			},
			overlay: configDTO{
				LogLevel: stringPtr("LOUD"),
			},
			expected: Config{
				LogLevel: slog.LevelError,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.base
			result.Update(tt.overlay)
			if diff := cmp.Diff(tt.expected, result); diff != "" {
				t.Errorf("Update() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvSettingsRoot: "/srv/settings",
		EnvCacheDir:     "",
		EnvLogLevel:     "debug",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	result := defaults()
	result.ApplyEnv(lookup)

	expected := defaults()
	expected.SettingsRoot = "/srv/settings"
	expected.LogLevel = slog.LevelDebug
	if diff := cmp.Diff(expected, result); diff != "" {
		t.Errorf("ApplyEnv() mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigSource_ReadFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	tests := []struct {
		name        string
		fileContent string
		setupFile   bool
		expectError bool
		expected    Config
	}{
		{
			name: "valid config file",
			fileContent: `settings-root = "/srv/settings"
log-level = "DEBUG"
use-text-codec = false
override-dirs = ["override", "siteaccess/admin"]
`,
			setupFile: true,
			expected: func() Config {
				c := defaults()
				c.SettingsRoot = "/srv/settings"
				c.LogLevel = slog.LevelDebug
				c.UseTextCodec = false
				c.OverrideDirs = []string{"override", "siteaccess/admin"}
				return c
			}(),
		},
		{
			name:      "missing file uses defaults",
			setupFile: false,
			expected:  defaults(),
		},
		{
			name:        "malformed file is an error",
			fileContent: "not valid toml ===",
			setupFile:   true,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(tmpDir, "test-"+tt.name+".toml")

			if tt.setupFile {
				if err := os.WriteFile(testFile, []byte(tt.fileContent), 0644); err != nil {
					t.Fatalf("failed to write test file: %v", err)
				}
			}

			source := &ConfigSource{Path: testFile, DropInDir: filepath.Join(tmpDir, "nonexistent")}
			result, err := source.Read()

			if tt.expectError && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.expectError {
				if diff := cmp.Diff(tt.expected, result); diff != "" {
					t.Errorf("Read() mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestConfigSource_FullStack(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	mainConfigPath := filepath.Join(tmpDir, "config.toml")
	dropinDir := filepath.Join(tmpDir, "config.toml.d")

	if err := os.Mkdir(dropinDir, 0755); err != nil {
		t.Fatalf("failed to create drop-in directory: %v", err)
	}

	mainConfig := `
settings-root = "/srv/settings"
log-level = "INFO"
cache-dir = "/var/cache/inicascade"
`
	if err := os.WriteFile(mainConfigPath, []byte(mainConfig), 0644); err != nil {
		t.Fatalf("failed to write main config: %v", err)
	}

	// Drop-ins are applied in lexicographic order
	dropinFiles := map[string]string{
		"10-cache.toml":  `use-cache = false`,
		"20-debug.toml":  `log-level = "DEBUG"`,
		"30-root.toml":   `settings-root = "/custom/settings"`,
		"40-ignored.txt": `settings-root = "/ignored"`,
	}
	for filename, content := range dropinFiles {
		path := filepath.Join(dropinDir, filename)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write drop-in file %s: %v", filename, err)
		}
	}

	cs := &ConfigSource{Path: mainConfigPath, DropInDir: dropinDir}
	config, err := cs.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.SettingsRoot != "/custom/settings" {
		t.Errorf("expected SettingsRoot=/custom/settings, got %s", config.SettingsRoot)
	}
	if config.CacheDir != "/var/cache/inicascade" {
		t.Errorf("expected CacheDir=/var/cache/inicascade, got %s", config.CacheDir)
	}
	if config.UseCache {
		t.Error("expected UseCache=false")
	}
	if config.LogLevel != slog.LevelDebug {
		t.Errorf("expected LogLevel=DEBUG, got %v", config.LogLevel)
	}

	t.Setenv(EnvSettingsRoot, "/env/settings")
	config, err = cs.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.SettingsRoot != "/env/settings" {
		t.Errorf("expected environment to win, got %s", config.SettingsRoot)
	}
}

func TestEmbeddedDefault(t *testing.T) {
	dto, err := parseConfigDTO(defaultConfig)
	if err != nil {
		t.Fatalf("embedded default config is invalid: %v", err)
	}

	config := Config{}
	config.Update(dto)

	if diff := cmp.Diff(defaults(), config); diff != "" {
		t.Errorf("embedded defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestConfig_RegistryOptions(t *testing.T) {
	config := defaults()
	config.CacheDir = t.TempDir()
	config.UseCache = false
	config.OverrideDirs = []string{"override", "siteaccess"}

	reg := ini.NewRegistry(config.RegistryOptions(slog.New(slog.DiscardHandler))...)

	if diff := cmp.Diff(config.OverrideDirs, reg.OverrideDirs()); diff != "" {
		t.Errorf("OverrideDirs() mismatch (-want +got):\n%s", diff)
	}
	if reg.CacheEnabled() {
		t.Error("expected cache to be disabled")
	}
	if !reg.TextCodecEnabled() {
		t.Error("expected text codec to be enabled")
	}
}
