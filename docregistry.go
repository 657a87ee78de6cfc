package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gamma-omg/procurement-mcp/docstore"
	"github.com/gamma-omg/procurement-mcp/readers"
)

type Extractor interface {
	CanRead(path string) bool
	Extract(path string) (readers.Extraction, error)
}

type DocIngestor interface {
	Store(ctx context.Context, text, filename string, metadata map[string]string, category docstore.Category) (Receipt, error)
}

type RegistryStore interface {
	List() []docstore.ManifestEntry
	Delete(ctx context.Context, documentID string) (int, error)
}

// DocRegistry keeps the session store in sync with a directory of policy
// documents: new and changed files are ingested, removed files are
// forgotten. Changes are detected by content hash, so touching a file
// without altering it does not re-ingest.
type DocRegistry struct {
	log              *slog.Logger
	root             string
	mergeEventsDelay time.Duration
	extractor        Extractor
	ingestor         DocIngestor
	store            RegistryStore
}

type diskDoc struct {
	path     string
	filename string
	hash     string
	text     string
}

func (dr *DocRegistry) Sync(ctx context.Context) error {
	disk, err := dr.collectDocs()
	if err != nil {
		return err
	}

	byFile := make(map[string]docstore.ManifestEntry)
	for _, e := range dr.store.List() {
		byFile[e.Filename] = e
	}

	seen := make(map[string]struct{}, len(disk))
	for _, d := range disk {
		seen[d.filename] = struct{}{}

		prev, ok := byFile[d.filename]
		if ok && prev.DocumentID == d.hash {
			continue
		}
		if ok {
			// Content changed: drop the stale chunks before re-ingesting.
			if _, err := dr.store.Delete(ctx, prev.DocumentID); err != nil {
				return fmt.Errorf("failed to remove stale document %s: %w", d.filename, err)
			}
		}

		receipt, err := dr.ingestor.Store(ctx, d.text, d.filename, nil, "")
		if err != nil {
			return fmt.Errorf("failed to ingest document %s: %w", d.filename, err)
		}

		dr.log.Info("document ingested",
			slog.String("file", d.filename),
			slog.String("category", string(receipt.Category)),
			slog.Int("chunks", receipt.ChunkCount))
	}

	for _, e := range byFile {
		if _, ok := seen[e.Filename]; ok {
			continue
		}

		n, err := dr.store.Delete(ctx, e.DocumentID)
		if err != nil {
			return fmt.Errorf("failed to forget document %s: %w", e.Filename, err)
		}

		dr.log.Info("document forgotten",
			slog.String("file", e.Filename),
			slog.Int("chunks", n))
	}

	return nil
}

func (dr *DocRegistry) collectDocs() ([]diskDoc, error) {
	var docs []diskDoc
	err := filepath.Walk(dr.root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !dr.extractor.CanRead(path) {
			dr.log.Warn("unsupported file", slog.String("path", path))
			return nil
		}

		ex, err := dr.extractor.Extract(path)
		if err != nil {
			return err
		}

		sum := md5.Sum([]byte(ex.Text))
		docs = append(docs, diskDoc{
			path:     path,
			filename: ex.Filename,
			hash:     hex.EncodeToString(sum[:]),
			text:     ex.Text,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// Watch re-syncs the registry whenever the doc root changes. Bursts of
// file events are merged within mergeEventsDelay so one save triggers one
// sync. Blocks until the context is canceled.
func (dr *DocRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dr.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dr.root, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			pending = time.After(dr.mergeEventsDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			dr.log.Warn("fs watcher error", slog.String("error", err.Error()))
		case <-pending:
			pending = nil
			if err := dr.Sync(ctx); err != nil {
				dr.log.Warn("sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
