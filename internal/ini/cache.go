package ini

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

// DefaultCacheDir holds merged tables, one file per distinct input set.
const DefaultCacheDir = "var/cache/ini"

const (
	// cacheFormatVersion must be increased whenever cacheRecord changes.
	// Cache files carrying another version are discarded.
	cacheFormatVersion = 3
	cacheSuffix        = ".cbor"
	fingerprintSeed    = 0x9e3779b97f4a7c15
)

// CacheState describes how the last load of a Handle used the cache.
type CacheState int

const (
	// CacheDisabled means caching was off for the load.
	CacheDisabled CacheState = iota
	// CacheMiss means no cache file existed, or it could not be used at all.
	CacheMiss
	// CacheHit means the table was read from the cache file.
	CacheHit
	// CacheStale means an input was newer than the cache file.
	CacheStale
	// CacheInvalidFormat means the cache file was unreadable or written by
	// another format version.
	CacheInvalidFormat
)

func (s CacheState) String() string {
	switch s {
	case CacheDisabled:
		return "disabled"
	case CacheMiss:
		return "miss"
	case CacheHit:
		return "hit"
	case CacheStale:
		return "stale"
	case CacheInvalidFormat:
		return "invalid-format"
	default:
		return fmt.Sprintf("CacheState(%d)", int(s))
	}
}

type cacheRecord struct {
	Version int           `cbor:"1,keyasint"`
	Charset string        `cbor:"2,keyasint"`
	Blocks  []blockRecord `cbor:"3,keyasint"`
}

type blockRecord struct {
	Name    string        `cbor:"1,keyasint"`
	Entries []entryRecord `cbor:"2,keyasint"`
}

type entryRecord struct {
	Key   string   `cbor:"1,keyasint"`
	Array bool     `cbor:"2,keyasint,omitempty"`
	Items []string `cbor:"3,keyasint"`
}

var (
	cacheEncMode cbor.EncMode
	cacheDecMode cbor.DecMode
)

func init() {
	var err error
	cacheEncMode, err = cbor.EncOptions{
		Sort: cbor.SortNone,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder: %v", err))
	}
	cacheDecMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder: %v", err))
	}
}

func newCacheRecord(charset string, t *Table) cacheRecord {
	rec := cacheRecord{Version: cacheFormatVersion, Charset: charset}
	for _, name := range t.names {
		b := t.blocks[name]
		br := blockRecord{Name: name, Entries: make([]entryRecord, 0, len(b.keys))}
		for _, key := range b.keys {
			v := b.values[key]
			br.Entries = append(br.Entries, entryRecord{Key: key, Array: v.array, Items: v.Items()})
		}
		rec.Blocks = append(rec.Blocks, br)
	}
	return rec
}

func (rec cacheRecord) table() (*Table, error) {
	t := NewTable()
	for _, br := range rec.Blocks {
		b := t.Ensure(br.Name)
		for _, e := range br.Entries {
			switch {
			case e.Array:
				b.Set(e.Key, Array(e.Items...))
			case len(e.Items) == 1:
				b.Set(e.Key, Scalar(e.Items[0]))
			default:
				return nil, fmt.Errorf("scalar %q in block %q holds %d items", e.Key, br.Name, len(e.Items))
			}
		}
	}
	return t, nil
}

// fingerprint identifies an input set. Two seeded 64-bit xxhash digests
// give a 128-bit identity rendered as hex.
func fingerprint(inputs []InputFile, internalCharset string) string {
	var sb strings.Builder
	for i, in := range inputs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(in.Path)
	}
	if internalCharset != "" {
		sb.WriteByte('-')
		sb.WriteString(internalCharset)
	}
	s := sb.String()

	seeded := xxhash.NewWithSeed(fingerprintSeed)
	_, _ = seeded.WriteString(s)
	return fmt.Sprintf("%016x%016x", seeded.Sum64(), xxhash.Sum64String(s))
}

// cacheStore keeps merged tables in a directory.
type cacheStore struct {
	dir    string
	logger *slog.Logger
}

// prepare creates the cache directory if needed. It reports whether cache
// files can be written.
func (c cacheStore) prepare() bool {
	info, err := os.Stat(c.dir)
	if err == nil && info.IsDir() {
		return true
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Error("cache disabled for load",
			"cache", c.dir, "error", fmt.Errorf("%w: %w", ErrCacheDirCreate, err))
		return false
	}
	return true
}

func (c cacheStore) path(fp string) string {
	return filepath.Join(c.dir, fp+cacheSuffix)
}

// load reads the cache file at path if it is at least as new as inputTime.
func (c cacheStore) load(path string, inputTime time.Time) (*Table, string, CacheState) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", CacheMiss
	}
	if err != nil {
		c.logger.Warn("cannot stat cache file", "cache", path, "error", err)
		return nil, "", CacheMiss
	}
	if info.ModTime().Before(inputTime) {
		c.logger.Debug("cache file is stale", "cache", path)
		return nil, "", CacheStale
	}

	t, charset, err := c.decode(path)
	if err != nil {
		c.logger.Debug("recreating cache file", "cache", path, "error", err)
		return nil, "", CacheInvalidFormat
	}
	c.logger.Debug("loaded cache file", "cache", path)
	return t, charset, CacheHit
}

func (c cacheStore) decode(path string) (*Table, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidCache, err)
	}
	var rec cacheRecord
	if err := cacheDecMode.Unmarshal(data, &rec); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidCache, err)
	}
	if rec.Version != cacheFormatVersion {
		return nil, "", fmt.Errorf("%w: format version %d, want %d", ErrInvalidCache, rec.Version, cacheFormatVersion)
	}
	t, err := rec.table()
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrInvalidCache, err)
	}
	return t, rec.Charset, nil
}

// save writes rec to path. The file is replaced by rename so concurrent
// readers never see a partial payload.
func (c cacheStore) save(path string, rec cacheRecord) error {
	data, err := cacheEncMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	if err := replaceFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	c.logger.Debug("wrote cache file", "cache", path)
	return nil
}
