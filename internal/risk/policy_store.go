package risk

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// PolicyStore holds the active policy and swaps it when the policy file
// changes. Readers always see a complete policy.
type PolicyStore struct {
	base    Policy
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Policy]
}

// NewPolicyStore loads path over base. base comes from the environment.
func NewPolicyStore(base Policy, path string, logger *slog.Logger) (*PolicyStore, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &PolicyStore{base: base, path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current implements PolicySource.
func (s *PolicyStore) Current() Policy {
	return *s.current.Load()
}

// Reload re-reads the policy file. On error the active policy is kept.
func (s *PolicyStore) Reload() error {
	p, err := LoadPolicyFile(s.path, s.base)
	if err != nil {
		return err
	}
	s.current.Store(&p)
	return nil
}

// Watch reloads the policy whenever the file is written. It watches the
// parent directory so editors that replace the file are picked up. Blocks
// until ctx is cancelled.
func (s *PolicyStore) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("risk: create policy watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("risk: watch %q: %w", s.path, err)
	}

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := s.Reload(); err != nil {
					s.logger.Error("policy reload failed", slog.String("path", s.path), slog.Any("error", err))
					return
				}
				p := s.Current()
				s.logger.Info("policy reloaded",
					slog.String("path", s.path),
					slog.Int("threshold", p.Threshold),
				)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("policy watcher error", slog.Any("error", err))
		}
	}
}
