package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.yaml.in/yaml/v3"
)

// WatchFile is the optional YAML file listing channels to watch:
//
//	channels:
//	  - somechannel
//	  - otherchannel
//	interval: 30s
type WatchFile struct {
	Channels []string `yaml:"channels"`
	Interval time.Duration
}

// LoadWatchFile parses the watch list from path.
func LoadWatchFile(path string) (*WatchFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Channels []string `yaml:"channels"`
		Interval string   `yaml:"interval"`
	}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	wf := &WatchFile{Channels: raw.Channels}
	for i, c := range wf.Channels {
		wf.Channels[i] = strings.ToLower(strings.TrimSpace(c))
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse %s interval: %w", path, err)
		}
		wf.Interval = d
	}
	return wf, nil
}

// WatchReload watches path for changes and calls onChange with the fresh
// channel list after each successful re-parse. Parse errors keep the previous
// list; a broken edit must not stop the watchers. Blocks until ctx is done.
//
// The parent directory is watched rather than the file itself so atomic
// rename-style saves (editors, configmap updates) are still observed.
func WatchReload(ctx context.Context, path string, onChange func([]string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close fsnotify watcher", slog.Any("err", err))
		}
	}()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)
	slog.Info("watching channel list for changes", slog.String("path", target))

	// Editors fire bursts of events per save; coalesce them.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(250 * time.Millisecond)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch file watcher error", slog.Any("err", err))
		case <-pending:
			pending = nil
			wf, err := LoadWatchFile(path)
			if err != nil {
				slog.Error("watch file reload failed; keeping previous channel list", slog.Any("err", err))
				continue
			}
			slog.Info("watch file reloaded", slog.Int("channels", len(wf.Channels)))
			onChange(wf.Channels)
		}
	}
}
