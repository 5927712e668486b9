package lock

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// pause sleeps for d between acquisition attempts. With watching enabled
// it returns early once the lock file is removed or renamed away.
func (l *Lock) pause(ctx context.Context, d time.Duration) error {
	if !l.watch {
		return l.clock.Sleep(ctx, d)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		l.log.Debug("release watch unavailable", l.fields(map[string]any{"error": err.Error()}))
		return l.clock.Sleep(ctx, d)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(l.lockPath)); err != nil {
		l.log.Debug("release watch unavailable", l.fields(map[string]any{"error": err.Error()}))
		return l.clock.Sleep(ctx, d)
	}

	wake, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name == l.lockPath && (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
					cancel()
					return
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-wake.Done():
				return
			}
		}
	}()

	err = l.clock.Sleep(wake, d)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		l.log.Debug("lock file removed, retrying early", l.fields())
	}
	return nil
}
