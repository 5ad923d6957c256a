package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ChangeFunc receives the previous and new configuration and the diff
// between them.
type ChangeFunc func(old, new *Config, diff ConfigDiff)

// Watcher polls a config file and reports valid changes to a callback.
// Invalid edits are logged once and otherwise ignored; the last valid
// configuration stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc

	mu       sync.Mutex
	current  *Config
	lastMod  time.Time
	lastSize int64
	lastHash [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once and returns a watcher for it. Polling starts
// with [Watcher.Run].
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	info, data, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	w.lastHash = sha256.Sum256(data)
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx is done. It always returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check performs one poll and reports whether a new configuration was
// adopted.
func (w *Watcher) Check() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return false
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.lastMod) && info.Size() == w.lastSize
	w.mu.Unlock()
	if unchanged {
		return false
	}

	info, data, err := w.read()
	if err != nil {
		slog.Warn("config watcher: cannot read file", "path", w.path, "err", err)
		return false
	}
	hash := sha256.Sum256(data)

	w.mu.Lock()
	// Remember the file state even if it turns out invalid so the same bad
	// edit is reported once.
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	if hash == w.lastHash {
		w.mu.Unlock()
		return false
	}
	w.lastHash = hash
	w.mu.Unlock()

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		slog.Warn("config watcher: ignoring invalid configuration", "path", w.path, "err", err)
		return false
	}

	w.mu.Lock()
	old := w.current
	w.current = cfg
	w.mu.Unlock()

	d := Diff(old, cfg)
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"live", d.Live(),
		"restart_required", d.RestartRequired,
	)
	if w.onChange != nil {
		w.onChange(old, cfg, d)
	}
	return true
}

func (w *Watcher) read() (os.FileInfo, []byte, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, nil, err
	}
	return info, buf.Bytes(), nil
}
