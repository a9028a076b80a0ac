package ini

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultFileName is loaded when no file name is given.
	DefaultFileName = "site.ini"
	// DefaultRootDir is the settings root used when none is given.
	DefaultRootDir = "settings"
	// DefaultOverrideDir is the override directory list of a new registry.
	DefaultOverrideDir = "override"
	// AppendSuffix marks override files that extend instead of replace.
	AppendSuffix = ".append"
	// PackedSuffix marks the zstd packed variant of a settings file. It is
	// preferred over the plain file when both exist.
	PackedSuffix = ".zst"
)

// InputFile is one physical file taking part in a load.
type InputFile struct {
	Path    string
	ModTime time.Time
	// Base is set for the settings file itself, as opposed to overrides.
	Base bool
}

// candidatePaths lists, in precedence order, the logical files that can
// contribute to fileName: the base file, then for every override directory
// the plain override and its append variant.
func candidatePaths(root, fileName string, overrideDirs []string) []string {
	paths := make([]string, 0, 1+2*len(overrideDirs))
	paths = append(paths, absPath(filepath.Join(root, fileName)))
	for _, dir := range overrideDirs {
		override := absPath(filepath.Join(root, dir, fileName))
		paths = append(paths, override, override+AppendSuffix)
	}
	return paths
}

// resolveInputs returns the existing input files for fileName in the order
// they must be merged. Missing candidates are skipped.
func resolveInputs(root, fileName string, overrideDirs []string) []InputFile {
	var inputs []InputFile
	for i, candidate := range candidatePaths(root, fileName, overrideDirs) {
		in, ok := locate(candidate)
		if !ok {
			continue
		}
		in.Base = i == 0
		inputs = append(inputs, in)
	}
	return inputs
}

// locate finds the packed or plain form of candidate.
func locate(candidate string) (InputFile, bool) {
	for _, path := range []string{candidate + PackedSuffix, candidate} {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return InputFile{Path: path, ModTime: info.ModTime()}, true
	}
	return InputFile{}, false
}

// latestModTime returns the newest modification time among inputs.
func latestModTime(inputs []InputFile) time.Time {
	var latest time.Time
	for _, in := range inputs {
		if in.ModTime.After(latest) {
			latest = in.ModTime
		}
	}
	return latest
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
