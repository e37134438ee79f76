package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the debounce interval for file events. Editors and
// scp-like tools fire several events per drop.
const debounceDefault = 200 * time.Millisecond

// Spool watches a directory for drop-in analysis requests: JSON files of the
// form {"repo": "owner/name"}. Processed files are renamed with a .done or
// .failed suffix so a crashed run never reprocesses silently.
type Spool struct {
	dir    string
	runner AnalyzeRunner
}

// NewSpool creates a spool watcher over dir.
func NewSpool(dir string, runner AnalyzeRunner) (*Spool, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool directory is required")
	}
	return &Spool{dir: dir, runner: runner}, nil
}

// Run processes existing requests, then watches for new ones. Blocks until
// ctx is cancelled.
func (s *Spool) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure spool dir: %w", err)
	}

	if err := s.scanExisting(ctx); err != nil {
		return fmt.Errorf("scan existing: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	slog.Info("watching for analysis requests", "dir", s.dir)

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			slog.Info("spool watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isRequestFile(filepath.Base(event.Name)) {
				continue
			}

			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(debounceDefault, func() {
				s.process(ctx, path)
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// scanExisting processes request files already in the spool directory.
func (s *Spool) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !isRequestFile(e.Name()) {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		s.process(ctx, filepath.Join(s.dir, e.Name()))
	}
	return nil
}

func (s *Spool) process(ctx context.Context, path string) {
	name := filepath.Base(path)

	req, err := readRequest(path)
	if err != nil {
		slog.Error("bad analysis request", "file", name, "error", err)
		s.finish(path, ".failed")
		return
	}

	slog.Info("processing spooled request", "file", name, "repo", req.Repo)

	if _, err := s.runner.Run(ctx, req.Repo); err != nil {
		slog.Error("spooled analysis failed", "file", name, "repo", req.Repo, "error", err)
		s.finish(path, ".failed")
		return
	}
	s.finish(path, ".done")
}

func (s *Spool) finish(path, suffix string) {
	if err := os.Rename(path, path+suffix); err != nil {
		slog.Error("mark request file", "file", filepath.Base(path), "error", err)
	}
}

func readRequest(path string) (*analyzeRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var req analyzeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	if req.Repo == "" {
		return nil, fmt.Errorf("request has no repo")
	}
	return &req, nil
}

func isRequestFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
