package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileProvider watches a configuration file and re-applies it on change.
// A reload that fails to parse, validate, or build keeps the last-known-good
// configuration live.
type FileProvider struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	apply   func(*Config) error
}

// NewFileProvider loads the file once, applies it, and starts watching the
// containing directory (editors replace files rather than write in place).
func NewFileProvider(path string, logger *slog.Logger, apply func(*Config) error) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	cfg, err := Load(absPath)
	if err != nil {
		return nil, err
	}
	if err := apply(cfg); err != nil {
		return nil, fmt.Errorf("apply initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch config directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &FileProvider{
		path:    absPath,
		logger:  logger,
		watcher: watcher,
		cancel:  cancel,
		apply:   apply,
	}
	go p.watchLoop(ctx)
	return p, nil
}

// Close stops the watcher and cleans up resources.
func (p *FileProvider) Close() error {
	p.cancel()
	return p.watcher.Close()
}

func (p *FileProvider) watchLoop(ctx context.Context) {
	// Debounce: editors emit bursts of write events for a single save.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != p.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("config watcher error", "error", err)
		case <-pending:
			pending = nil
			p.reload()
		}
	}
}

func (p *FileProvider) reload() {
	cfg, err := Load(p.path)
	if err != nil {
		p.logger.Error("config reload failed, keeping last-known-good", "path", p.path, "error", err)
		return
	}
	if err := p.apply(cfg); err != nil {
		p.logger.Error("config apply failed, keeping last-known-good", "path", p.path, "error", err)
		return
	}
	p.logger.Info("configuration reloaded", "path", p.path)
}
