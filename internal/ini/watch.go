package ini

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// watchSet tracks the candidate input files of a handle and the directories
// holding them.
type watchSet struct {
	watcher *fsnotify.Watcher
	files   map[string]bool
	// dirs maps every candidate directory to whether it is being watched.
	dirs map[string]bool
}

// Watch reloads the handle whenever one of its possible input files is
// written, created, renamed or removed, and then calls onReload. Bursts of
// events are coalesced. The set of watched directories follows the
// registry's override list: it is recomputed after every reload and when a
// missing candidate directory is created. Watching stops when ctx is done.
func (h *Handle) Watch(ctx context.Context, onReload func(*Handle)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	ws := &watchSet{watcher: watcher}
	if h.refreshWatch(ws) == 0 {
		_ = watcher.Close()
		return fmt.Errorf("no settings directory to watch for %s", h.fileName)
	}

	go h.processEvents(ctx, ws, onReload)
	return nil
}

// refreshWatch recomputes the candidate files from the registry's current
// override list and adds every existing candidate directory not yet
// watched. It returns the number of watched directories.
func (h *Handle) refreshWatch(ws *watchSet) int {
	candidates := candidatePaths(h.rootDir, h.fileName, h.reg.OverrideDirs())

	files := make(map[string]bool, 2*len(candidates))
	dirs := make(map[string]bool)
	for _, candidate := range candidates {
		files[candidate] = true
		files[candidate+PackedSuffix] = true
		dirs[filepath.Dir(candidate)] = ws.dirs[filepath.Dir(candidate)]
	}

	// The base file's directory is the root, so override directories
	// created directly below it are noticed through their Create event.
	watched := 0
	for dir, ok := range dirs {
		if !ok {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				continue
			}
			if err := ws.watcher.Add(dir); err != nil {
				h.reg.logger.Warn("failed to watch directory", "dir", dir, "error", err)
				continue
			}
			dirs[dir] = true
		}
		watched++
	}

	ws.files, ws.dirs = files, dirs
	h.reg.logger.Debug("watching settings", "file", h.fileName, "dirs", watched)
	return watched
}

func (h *Handle) processEvents(ctx context.Context, ws *watchSet, onReload func(*Handle)) {
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer func() {
		timer.Stop()
		_ = ws.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-ws.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if watching, candidate := ws.dirs[event.Name]; candidate && !watching && event.Has(fsnotify.Create) {
				h.refreshWatch(ws)
			} else if !ws.files[event.Name] {
				continue
			}
			h.reg.logger.Debug("settings file changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(watchDebounce)

		case <-timer.C:
			h.Load()
			h.refreshWatch(ws)
			if onReload != nil {
				onReload(h)
			}

		case err, ok := <-ws.watcher.Errors:
			if !ok {
				return
			}
			h.reg.logger.Warn("settings watcher error", "error", err)
		}
	}
}
