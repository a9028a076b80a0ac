package ini

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/redhatinsights/inicascade/internal/textcodec"
)

// NoCacheEnv, when set to a true value, advises against using the cache.
const NoCacheEnv = "INICASCADE_NO_CACHE"

// Registry hands out one Handle per (root, file name) and owns the
// settings shared by every load: the override directory list, the cache
// location and the cache and text conversion defaults.
type Registry struct {
	mu sync.Mutex

	logger           *slog.Logger
	cacheDir         string
	internalCharset  string
	recoder          textcodec.Recoder
	noCacheAdvised   func() bool
	overrideDirs     []string
	generation       uint64
	cacheEnabled     bool
	textCodecEnabled bool

	instances map[instanceKey]*Handle
}

type instanceKey struct {
	root     string
	fileName string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the diagnostic sink.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCacheDir sets the directory cache files are written to.
func WithCacheDir(dir string) RegistryOption {
	return func(r *Registry) {
		if dir != "" {
			r.cacheDir = dir
		}
	}
}

// WithInternalCharset sets the charset values are converted into.
func WithInternalCharset(charset string) RegistryOption {
	return func(r *Registry) {
		r.internalCharset = charset
	}
}

// WithRecoder replaces the text conversion service.
func WithRecoder(recoder textcodec.Recoder) RegistryOption {
	return func(r *Registry) {
		r.recoder = recoder
	}
}

// WithNoCacheAdvised replaces the check consulted before every cached load.
func WithNoCacheAdvised(advised func() bool) RegistryOption {
	return func(r *Registry) {
		if advised != nil {
			r.noCacheAdvised = advised
		}
	}
}

// WithOverrideDirs replaces the initial override directory list.
func WithOverrideDirs(dirs ...string) RegistryOption {
	return func(r *Registry) {
		r.overrideDirs = slices.Clone(dirs)
	}
}

// WithCacheEnabled sets whether loads use the cache by default.
func WithCacheEnabled(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.cacheEnabled = enabled
	}
}

// WithTextCodecEnabled sets whether loads convert values by default.
func WithTextCodecEnabled(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.textCodecEnabled = enabled
	}
}

// NewRegistry returns an empty registry. Caching and text conversion are
// enabled by default and the override list is [DefaultOverrideDir].
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		logger:           slog.Default(),
		cacheDir:         DefaultCacheDir,
		internalCharset:  textcodec.DefaultInternalCharset,
		noCacheAdvised:   noCacheAdvisedByEnv,
		overrideDirs:     []string{DefaultOverrideDir},
		cacheEnabled:     true,
		textCodecEnabled: true,
		instances:        make(map[instanceKey]*Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.recoder == nil {
		codec, err := textcodec.New(r.internalCharset)
		if err != nil {
			r.logger.Error("text conversion disabled", "charset", r.internalCharset, "error", err)
			r.textCodecEnabled = false
		} else {
			r.recoder = codec
		}
	}
	return r
}

func noCacheAdvisedByEnv() bool {
	advised, err := strconv.ParseBool(os.Getenv(NoCacheEnv))
	return err == nil && advised
}

// LoadOption overrides a registry default for one Instance call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	useCache     bool
	useTextCodec bool
}

// WithCache overrides whether the new handle uses the cache.
func WithCache(enabled bool) LoadOption {
	return func(o *loadOptions) {
		o.useCache = enabled
	}
}

// WithTextCodec overrides whether the new handle converts values.
func WithTextCodec(enabled bool) LoadOption {
	return func(o *loadOptions) {
		o.useTextCodec = enabled
	}
}

// Instance returns the handle for fileName under rootDir, loading it on
// first use. Later calls return the same handle and ignore opts. Empty
// names default to DefaultFileName and DefaultRootDir.
func (r *Registry) Instance(fileName, rootDir string, opts ...LoadOption) *Handle {
	fileName, rootDir = defaultNames(fileName, rootDir)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := instanceKey{root: rootDir, fileName: fileName}
	if h, ok := r.instances[key]; ok {
		return h
	}

	lo := loadOptions{useCache: r.cacheEnabled, useTextCodec: r.textCodecEnabled}
	for _, opt := range opts {
		opt(&lo)
	}
	h := &Handle{
		reg:          r,
		fileName:     fileName,
		rootDir:      rootDir,
		useCache:     lo.useCache,
		useTextCodec: lo.useTextCodec,
	}
	h.loadWith(r.envLocked())
	r.instances[key] = h
	return h
}

// IsLoaded reports whether a handle exists for fileName under rootDir.
func (r *Registry) IsLoaded(fileName, rootDir string) bool {
	fileName, rootDir = defaultNames(fileName, rootDir)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[instanceKey{root: rootDir, fileName: fileName}]
	return ok
}

// Forget drops the handle for fileName under rootDir. The next Instance
// call loads it again.
func (r *Registry) Forget(fileName, rootDir string) {
	fileName, rootDir = defaultNames(fileName, rootDir)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, instanceKey{root: rootDir, fileName: fileName})
}

// Reset drops every handle.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.instances)
}

// Exists reports whether the base file for fileName exists under rootDir,
// in plain or packed form.
func (r *Registry) Exists(fileName, rootDir string) bool {
	fileName, rootDir = defaultNames(fileName, rootDir)
	_, ok := locate(absPath(filepath.Join(rootDir, fileName)))
	return ok
}

// OverrideDirs returns the current override directory list.
func (r *Registry) OverrideDirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.overrideDirs)
}

// PrependOverrideDir puts dir in front of the override list, giving it the
// lowest precedence. Existing handles pick it up on their next Load.
func (r *Registry) PrependOverrideDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrideDirs = append([]string{dir}, r.overrideDirs...)
	r.generation++
	r.logger.Debug("override directories changed", "dirs", r.overrideDirs)
}

// AppendOverrideDir adds dir at the end of the override list, giving it
// the highest precedence. Existing handles pick it up on their next Load.
func (r *Registry) AppendOverrideDir(dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrideDirs = append(slices.Clip(r.overrideDirs), dir)
	r.generation++
	r.logger.Debug("override directories changed", "dirs", r.overrideDirs)
}

// SetCacheEnabled changes the cache default for handles created later.
func (r *Registry) SetCacheEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cacheEnabled = enabled
}

// CacheEnabled reports the cache default.
func (r *Registry) CacheEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cacheEnabled
}

// SetTextCodecEnabled changes the text conversion default for handles
// created later.
func (r *Registry) SetTextCodecEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textCodecEnabled = enabled && r.recoder != nil
}

// TextCodecEnabled reports the text conversion default.
func (r *Registry) TextCodecEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.textCodecEnabled
}

// loadEnv is the registry state a single load works from.
type loadEnv struct {
	logger         *slog.Logger
	cacheDir       string
	recoder        textcodec.Recoder
	overrideDirs   []string
	generation     uint64
	noCacheAdvised bool
}

func (r *Registry) env() loadEnv {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.envLocked()
}

func (r *Registry) envLocked() loadEnv {
	return loadEnv{
		logger:         r.logger,
		cacheDir:       r.cacheDir,
		recoder:        r.recoder,
		overrideDirs:   slices.Clone(r.overrideDirs),
		generation:     r.generation,
		noCacheAdvised: r.noCacheAdvised(),
	}
}

func (r *Registry) currentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

func defaultNames(fileName, rootDir string) (string, string) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if rootDir == "" {
		rootDir = DefaultRootDir
	}
	return fileName, rootDir
}
