package ini

import (
	"cmp"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Handle is a loaded settings file with its overrides merged in. Handles
// are created by Registry.Instance and are safe for concurrent use.
type Handle struct {
	mu  sync.RWMutex
	reg *Registry

	fileName     string
	rootDir      string
	useCache     bool
	useTextCodec bool

	table   *Table
	charset string
	// valueCharset is the charset the stored values are in: the internal
	// charset when they were converted on load, charset otherwise.
	valueCharset string
	inputs       []InputFile
	overrideDirs []string
	generation   uint64
	cachePath    string
	cacheState   CacheState
}

// LookupStatus tells why a lookup did or did not produce a value.
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupMissingBlock
	LookupMissingKey
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupMissingBlock:
		return "missing block"
	case LookupMissingKey:
		return "missing key"
	default:
		return "unknown"
	}
}

// Lookup is the result of reading one setting.
type Lookup struct {
	Value  Value
	Status LookupStatus
}

// OK reports whether the setting was found.
func (l Lookup) OK() bool {
	return l.Status == LookupFound
}

// FileName returns the logical file name of the handle.
func (h *Handle) FileName() string {
	return h.fileName
}

// RootDir returns the settings root of the handle.
func (h *Handle) RootDir() string {
	return h.rootDir
}

// Charset returns the charset declared by the base file.
func (h *Handle) Charset() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.charset
}

// Inputs returns the files merged by the last load, in merge order.
func (h *Handle) Inputs() []InputFile {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.inputs)
}

// OverrideDirs returns the override directories the last load used.
func (h *Handle) OverrideDirs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.overrideDirs)
}

// CacheState reports how the last load used the cache.
func (h *Handle) CacheState() CacheState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cacheState
}

// CachePath returns the cache file of the last load. It is empty when the
// load was uncached or the override list changed since.
func (h *Handle) CachePath() string {
	generation := h.reg.currentGeneration()
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.generation != generation {
		return ""
	}
	return h.cachePath
}

// Load discards the in-memory table and loads the settings again, from
// the cache when it is fresh.
func (h *Handle) Load() {
	env := h.reg.env()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadWith(env)
}

func (h *Handle) loadWith(env loadEnv) {
	logger := env.logger.With("file", h.fileName, "root", h.rootDir)

	h.table = NewTable()
	h.charset = DefaultCharset
	h.overrideDirs = env.overrideDirs
	h.generation = env.generation
	h.cachePath = ""
	h.inputs = resolveInputs(h.rootDir, h.fileName, h.overrideDirs)

	recoder := env.recoder
	if !h.useTextCodec {
		recoder = nil
	}
	codecCharset := ""
	if recoder != nil {
		codecCharset = recoder.InternalCharset()
	}
	defer func() {
		h.valueCharset = cmp.Or(codecCharset, h.charset)
	}()

	if !h.useCache || env.noCacheAdvised {
		h.cacheState = CacheDisabled
		h.table, h.charset = merge(h.inputs, recoder, logger)
		return
	}

	cache := cacheStore{dir: env.cacheDir, logger: logger}
	writable := cache.prepare()
	h.cachePath = cache.path(fingerprint(h.inputs, codecCharset))

	table, charset, state := cache.load(h.cachePath, latestModTime(h.inputs))
	h.cacheState = state
	if state == CacheHit {
		h.table, h.charset = table, charset
		return
	}

	h.table, h.charset = merge(h.inputs, recoder, logger)
	if !writable {
		return
	}
	if err := cache.save(h.cachePath, newCacheRecord(h.charset, h.table)); err != nil {
		logger.Error("failed to write cache file", "cache", h.cachePath, "error", err)
	}
}

// Reset removes every setting from the in-memory table.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.table = NewTable()
}

// ResetCache removes the cache file written by the last load.
func (h *Handle) ResetCache() {
	h.mu.RLock()
	path := h.cachePath
	h.mu.RUnlock()
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.reg.logger.Warn("failed to remove cache file", "cache", path, "error", err)
	}
}

// Variable returns the value of key in block. Misses are reported to the
// registry logger and returned with a non-found status.
func (h *Handle) Variable(block, key string) Lookup {
	h.mu.RLock()
	b := h.table.Block(block)
	v, ok := b.Get(key)
	h.mu.RUnlock()

	switch {
	case b == nil:
		h.reg.logger.Warn("undefined block", "file", h.fileName, "block", block)
		return Lookup{Status: LookupMissingBlock}
	case !ok:
		h.reg.logger.Warn("undefined variable", "file", h.fileName, "block", block, "key", key)
		return Lookup{Status: LookupMissingKey}
	default:
		return Lookup{Value: v, Status: LookupFound}
	}
}

// VariableArray returns the value of key split on ";". Every array item
// becomes one row; a scalar yields a single row.
func (h *Handle) VariableArray(block, key string) ([][]string, LookupStatus) {
	l := h.Variable(block, key)
	if !l.OK() {
		return nil, l.Status
	}
	items := l.Value.Items()
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, strings.Split(item, ";"))
	}
	return rows, LookupFound
}

// HasVariable reports whether key is set in block.
func (h *Handle) HasVariable(block, key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.table.Block(block).Has(key)
}

// HasGroup reports whether block exists.
func (h *Handle) HasGroup(block string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.table.Has(block)
}

// Group returns a copy of block.
func (h *Handle) Group(block string) (*Block, bool) {
	h.mu.RLock()
	b := h.table.Block(block)
	var clone *Block
	if b != nil {
		clone = b.Clone()
	}
	h.mu.RUnlock()
	if clone == nil {
		h.reg.logger.Warn("undefined block", "file", h.fileName, "block", block)
		return nil, false
	}
	return clone, true
}

// Assign stores the value of key in dst when it exists and reports whether
// it did. dst is left alone otherwise.
func (h *Handle) Assign(block, key string, dst *Value) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.table.Block(block).Get(key)
	if ok {
		*dst = v
	}
	return ok
}

// SetVariable stores v at key in block, creating the block when needed.
func (h *Handle) SetVariable(block, key string, v Value) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.table.Ensure(block).Set(key, v)
}

// Table returns a copy of the merged table.
func (h *Handle) Table() *Table {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.table.Clone()
}

// Save writes the table in the settings file format. The previous file,
// if any, is kept with BackupSuffix. The charset header names the charset
// the values are held in, which is the internal charset when they were
// converted on load. A packed variant of the destination is rewritten too
// so it does not shadow the saved file.
func (h *Handle) Save(opts SaveOptions) error {
	h.mu.RLock()
	dest := h.Destination(opts)
	data := encodeTable(h.valueCharset, h.table)
	h.mu.RUnlock()

	if err := writeAtomic(dest, data); err != nil {
		return err
	}
	return refreshPacked(dest, data)
}

// WriteTo writes the table to w in the settings file format.
func (h *Handle) WriteTo(w io.Writer) (int64, error) {
	h.mu.RLock()
	data := encodeTable(h.valueCharset, h.table)
	h.mu.RUnlock()
	n, err := w.Write(data)
	return int64(n), err
}

// Destination returns the path Save writes to for opts.
func (h *Handle) Destination(opts SaveOptions) string {
	fileName := opts.FileName
	if fileName == "" {
		fileName = h.fileName
	}
	dir := h.rootDir
	if opts.Override != OverrideNone {
		overrideDir := DefaultOverrideDir
		if len(h.overrideDirs) > 0 {
			overrideDir = h.overrideDirs[0]
		}
		dir = filepath.Join(dir, overrideDir)
	}
	if opts.Override == OverrideAppend {
		fileName += AppendSuffix
	}
	return filepath.Join(dir, fileName+opts.Suffix)
}
