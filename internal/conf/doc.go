// Package conf implements drop-in configuration file support for the
// inicascade tool.
//
// This is the configuration of the tool itself: where the settings root
// and the cache live, and which loading policies apply. The settings files
// the tool operates on are handled by package ini.
//
// # Usage
//
//	cfg, err := conf.DefaultSource().Read()
//	if err != nil {
//	    return err
//	}
//	reg := ini.NewRegistry(cfg.RegistryOptions(logger)...)
//
// # Load Order
//
// Config is loaded and applied in four layers:
//
//  1. In-memory defaults embedded from default.toml
//  2. Main config file: /etc/inicascade/config.toml
//  3. Drop-in files: /etc/inicascade/config.toml.d/*.toml, in lexicographic order
//  4. INICASCADE_SETTINGS_ROOT, INICASCADE_CACHE_DIR and INICASCADE_LOG_LEVEL
//
// # Internal Architecture
//
//   - configDTO: internal struct with pointer fields for TOML parsing.
//     Pointers allow distinguishing "not set" (nil) from "set to zero value".
//
//   - Config: public struct with value fields. Has Update() method
//     to apply DTO values.
//
//   - ConfigSource: orchestrates loading from multiple sources and manages
//     their merging.
package conf
