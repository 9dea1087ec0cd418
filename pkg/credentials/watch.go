package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// WatchingSource is a Source that caches the token and reloads it when the
// credentials file changes on disk. Long-running processes (the notification
// watcher, the demo TUI) use it so a token rotated by `irobot auth login`
// in another terminal is applied on the next reconnect without re-reading
// the file on every open.
type WatchingSource struct {
	m       *Manager
	profile string
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu    sync.RWMutex
	token string
}

// NewWatchingSource loads the current token for the profile and starts
// watching the credentials file for changes. Close must be called to release
// the watcher.
func NewWatchingSource(m *Manager, profile string, logger *slog.Logger) (*WatchingSource, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating credentials watcher: %w", err)
	}

	// Watch the directory rather than the file: editors and Save replace
	// the file, which would drop a file-level watch.
	if err := watcher.Add(filepath.Dir(m.GetTarget())); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching credentials dir: %w", err)
	}

	s := &WatchingSource{
		m:       m,
		profile: profile,
		logger:  logger,
		watcher: watcher,
		done:    make(chan struct{}),
	}
	s.reload()

	go s.loop()

	return s, nil
}

// Token returns the cached access token.
func (s *WatchingSource) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// Close stops the file watcher.
func (s *WatchingSource) Close() error {
	close(s.done)
	return s.watcher.Close()
}

func (s *WatchingSource) loop() {
	target := filepath.Clean(s.m.GetTarget())

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.reload()
			s.logger.Debug("credentials reloaded", "profile", s.profile)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("credentials watcher error", "error", err)
		}
	}
}

func (s *WatchingSource) reload() {
	p, err := s.m.Profile(s.profile)
	if err != nil {
		s.logger.Warn("reloading credentials failed", "error", err)
		return
	}

	s.mu.Lock()
	s.token = p.AccessToken
	s.mu.Unlock()
}
