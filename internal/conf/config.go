package conf

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/redhatinsights/inicascade/internal/ini"
)

const (
	// DefaultPath is the main configuration file.
	DefaultPath = "/etc/inicascade/config.toml"
	// DefaultDropInDir holds drop-in configuration files.
	DefaultDropInDir = "/etc/inicascade/config.toml.d/"
)

// Environment variables overriding file configuration.
const (
	EnvSettingsRoot = "INICASCADE_SETTINGS_ROOT"
	EnvCacheDir     = "INICASCADE_CACHE_DIR"
	EnvLogLevel     = "INICASCADE_LOG_LEVEL"
)

// defaultConfig contains the embedded default configuration file.
// It is the base layer before the main file and drop-in files are applied.
//
//go:embed default.toml
var defaultConfig string

// Config represents the settings of the inicascade tool.
type Config struct {
	SettingsRoot    string
	CacheDir        string
	UseCache        bool
	UseTextCodec    bool
	InternalCharset string
	OverrideDirs    []string
	LogLevel        slog.Level
}

// Update applies non-nil values from a configDTO.
func (c *Config) Update(dto configDTO) {
	if dto.SettingsRoot != nil {
		c.SettingsRoot = *dto.SettingsRoot
	}
	if dto.CacheDir != nil {
		c.CacheDir = *dto.CacheDir
	}
	if dto.UseCache != nil {
		c.UseCache = *dto.UseCache
	}
	if dto.UseTextCodec != nil {
		c.UseTextCodec = *dto.UseTextCodec
	}
	if dto.InternalCharset != nil {
		c.InternalCharset = *dto.InternalCharset
	}
	if dto.OverrideDirs != nil {
		c.OverrideDirs = append([]string(nil), (*dto.OverrideDirs)...)
	}
	if dto.LogLevel != nil {
		if level, ok := ParseLevel(*dto.LogLevel); ok {
			c.LogLevel = level
		}
	}
}

// ApplyEnv applies environment overrides found through lookup, usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSettingsRoot); ok && v != "" {
		c.SettingsRoot = v
	}
	if v, ok := lookup(EnvCacheDir); ok && v != "" {
		c.CacheDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok {
		if level, ok := ParseLevel(v); ok {
			c.LogLevel = level
		}
	}
}

// RegistryOptions turns the configuration into options for ini.NewRegistry.
func (c *Config) RegistryOptions(logger *slog.Logger) []ini.RegistryOption {
	return []ini.RegistryOption{
		ini.WithLogger(logger),
		ini.WithCacheDir(c.CacheDir),
		ini.WithCacheEnabled(c.UseCache),
		ini.WithTextCodecEnabled(c.UseTextCodec),
		ini.WithInternalCharset(c.InternalCharset),
		ini.WithOverrideDirs(c.OverrideDirs...),
	}
}

// ParseLevel parses DEBUG, INFO, WARN or ERROR in any case.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// ConfigSource orchestrates loading configuration from multiple sources.
// See the Read method.
type ConfigSource struct {
	Path      string
	DropInDir string
}

// DefaultSource reads DefaultPath and DefaultDropInDir.
func DefaultSource() *ConfigSource {
	return &ConfigSource{Path: DefaultPath, DropInDir: DefaultDropInDir}
}

// Read loads and returns the complete Config by merging all layers:
// 1. Embedded defaults
// 2. Main configuration file
// 3. Drop-in files
// 4. Environment variables
func (cs *ConfigSource) Read() (Config, error) {
	resolved := Config{}

	// Start with embedded defaults
	dto, err := parseConfigDTO(defaultConfig)
	if err != nil {
		return resolved, fmt.Errorf("failed to parse embedded defaults: %w", err)
	}
	resolved.Update(dto)

	// Load main configuration file
	data, err := os.ReadFile(cs.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return resolved, fmt.Errorf("failed to load %s: %w", cs.Path, err)
		}
	} else {
		mainDTO, err := parseConfigDTO(string(data))
		if err != nil {
			// A malformed file is an error, not something to skip silently.
			return resolved, fmt.Errorf("failed to parse %s: %w", cs.Path, err)
		}
		resolved.Update(mainDTO)
	}

	dropInDTOs, err := cs.parseDropInFiles()
	if err != nil {
		return resolved, err
	}
	for _, dropInDTO := range dropInDTOs {
		resolved.Update(dropInDTO)
	}

	resolved.ApplyEnv(os.LookupEnv)
	return resolved, nil
}

type configDTO struct {
	SettingsRoot    *string   `toml:"settings-root"`
	CacheDir        *string   `toml:"cache-dir"`
	UseCache        *bool     `toml:"use-cache"`
	UseTextCodec    *bool     `toml:"use-text-codec"`
	InternalCharset *string   `toml:"internal-charset"`
	OverrideDirs    *[]string `toml:"override-dirs"`
	LogLevel        *string   `toml:"log-level"`
}

// parseConfigDTO parses a TOML string into a configDTO.
func parseConfigDTO(data string) (configDTO, error) {
	var dto configDTO

	if err := toml.Unmarshal([]byte(data), &dto); err != nil {
		return dto, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return dto, nil
}

// findDropInFiles returns sorted paths to drop-in configuration files.
// A missing drop-in directory is not an error.
func (cs *ConfigSource) findDropInFiles() ([]string, error) {
	if _, err := os.Stat(cs.DropInDir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(cs.DropInDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read drop-in directory %s: %w", cs.DropInDir, err)
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".toml") {
			filenames = append(filenames, filepath.Join(cs.DropInDir, entry.Name()))
		}
	}
	sort.Strings(filenames)

	return filenames, nil
}

// parseDropInFiles loads .toml files.
func (cs *ConfigSource) parseDropInFiles() ([]configDTO, error) {
	paths, err := cs.findDropInFiles()
	if err != nil {
		return nil, err
	}

	var dtos []configDTO
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		dto, err := parseConfigDTO(string(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		dtos = append(dtos, dto)
	}

	return dtos, nil
}
