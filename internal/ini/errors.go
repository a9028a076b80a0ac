package ini

import "errors"

var (
	// ErrUnreadableFile is reported when an input exists but cannot be read.
	ErrUnreadableFile = errors.New("settings file unreadable")
	// ErrCacheDirCreate is reported when the cache directory cannot be created.
	ErrCacheDirCreate = errors.New("cannot create cache directory")
	// ErrCacheWrite is reported when a cache file cannot be written.
	ErrCacheWrite = errors.New("cannot write cache file")
	// ErrInvalidCache is reported for cache payloads that cannot be used.
	ErrInvalidCache = errors.New("invalid cache file")
	// ErrWriteFailed is returned by Save when the destination was not replaced.
	ErrWriteFailed = errors.New("failed to write settings file")
)
