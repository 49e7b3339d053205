package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskpilot/internal/store"
)

func documentCount(t *testing.T, s *store.Store, projectID string) int {
	t.Helper()
	docs, err := s.Documents.ListByProject(context.Background(), projectID)
	require.NoError(t, err)
	return len(docs)
}

func TestWatcherIngestsExistingFiles(t *testing.T) {
	p, s, _ := newTestProcessor(t)
	dir := t.TempDir()
	writeFile(t, dir, "existing.txt", "already in the inbox")

	w := NewWatcher(p, "p1", dir)
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return documentCount(t, s, "p1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherIngestsNewFileAfterSettle(t *testing.T) {
	p, s, _ := newTestProcessor(t)
	dir := t.TempDir()

	w := NewWatcher(p, "p1", dir)
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "dropped.txt", "new file dropped into the inbox")

	require.Eventually(t, func() bool {
		return documentCount(t, s, "p1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	docs, err := s.Documents.ListByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "dropped.txt", docs[0].Name)

	cancel()
	<-done
}

func TestWatcherIgnoresUnsupportedFiles(t *testing.T) {
	p, s, _ := newTestProcessor(t)
	dir := t.TempDir()
	writeFile(t, dir, "image.png", "not text")
	writeFile(t, dir, "notes.txt", "real notes")

	w := NewWatcher(p, "p1", dir)
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return documentCount(t, s, "p1") == 1
	}, 2*time.Second, 10*time.Millisecond)

	docs, err := s.Documents.ListByProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.txt", docs[0].Name)

	cancel()
	<-done
}
