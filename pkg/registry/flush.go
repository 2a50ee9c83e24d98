package registry

import (
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// markDirty stamps the first mutation of the current debounce window.
// Callers hold the write lock.
func (r *Registry) markDirty(nowMs int64) {
	if !r.dirty {
		r.dirty = true
		r.dirtyAt = nowMs
	}
}

// RunFlusher writes the profile snapshot whenever mutations have been
// pending for at least the debounce window. It exits after a final flush
// when ctx is cancelled.
func (r *Registry) RunFlusher(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				r.errlog("registry: final flush: %v", err)
			}
			return ctx.Err()
		case <-ticker.C:
			r.mu.RLock()
			due := r.dirty && time.Now().UnixMilli()-r.dirtyAt >= debounceMs
			r.mu.RUnlock()
			if due {
				if err := r.Flush(); err != nil {
					r.errlog("registry: flush: %v", err)
				}
			}
		}
	}
}

// Flush writes the snapshot unconditionally. Safe to call at shutdown.
func (r *Registry) Flush() error {
	list := r.All()
	r.mu.Lock()
	r.dirty = false
	r.mu.Unlock()

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace profiles: %w", err)
	}
	return nil
}
