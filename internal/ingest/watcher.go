package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"taskpilot/internal/logging"
)

// Watcher ingests files dropped into an inbox directory. Each created
// or modified file is processed once it stops changing.
type Watcher struct {
	processor *Processor
	projectID string
	dir       string

	// settle is how long a file must be quiet before ingestion, so
	// half-written files are not picked up.
	settle time.Duration
}

// NewWatcher creates an inbox watcher for a project.
func NewWatcher(processor *Processor, projectID, dir string) *Watcher {
	return &Watcher{
		processor: processor,
		projectID: projectID,
		dir:       dir,
		settle:    500 * time.Millisecond,
	}
}

// Run watches the inbox until ctx is cancelled. Existing files are
// ingested on startup.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Ingest("watching inbox: %s", w.dir)

	// Catch up on files already present.
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.ingest(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	// Debounce write bursts per path.
	timers := make(map[string]*time.Timer)
	ready := make(chan string, 16)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-ready:
			delete(timers, path)
			w.ingest(ctx, path)
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Write) {
				continue
			}
			path := evt.Name
			if t, ok := timers[path]; ok {
				t.Reset(w.settle)
				continue
			}
			timers[path] = time.AfterFunc(w.settle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.IngestError("watch error: %v", err)
		}
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	doc, skipped, err := w.processor.IngestFile(ctx, w.projectID, path)
	switch {
	case errors.Is(err, ErrUnsupportedType):
		logging.IngestDebug("ignoring %s: %v", filepath.Base(path), err)
	case err != nil:
		logging.IngestError("failed to ingest %s: %v", filepath.Base(path), err)
	case skipped:
		// Already logged by the processor.
	default:
		logging.Ingest("auto-ingested %s (%d chunks)", doc.Name, doc.ChunkCount)
	}
}
