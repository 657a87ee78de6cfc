package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamma-omg/procurement-mcp/docstore"
	"github.com/gamma-omg/procurement-mcp/readers"
)

type txtExtractor struct{}

func (e *txtExtractor) CanRead(path string) bool {
	return filepath.Ext(path) == ".txt"
}

func (e *txtExtractor) Extract(path string) (readers.Extraction, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return readers.Extraction{}, err
	}

	return readers.Extraction{
		Text:        string(buf),
		Filename:    filepath.Base(path),
		ExtractedAt: time.Now(),
	}, nil
}

type ingestCall struct {
	text     string
	filename string
}

type fakeIngestor struct {
	calls []ingestCall
}

func (f *fakeIngestor) Store(ctx context.Context, text, filename string, metadata map[string]string, category docstore.Category) (Receipt, error) {
	f.calls = append(f.calls, ingestCall{text: text, filename: filename})
	sum := md5.Sum([]byte(text))
	return Receipt{
		Category:   docstore.CategoryPolicy,
		ChunkCount: 1,
		DocumentID: hex.EncodeToString(sum[:]),
	}, nil
}

type fakeManifest struct {
	entries []docstore.ManifestEntry
	deleted []string
}

func (f *fakeManifest) List() []docstore.ManifestEntry { return f.entries }

func (f *fakeManifest) Delete(ctx context.Context, documentID string) (int, error) {
	f.deleted = append(f.deleted, documentID)
	return 1, nil
}

func hashOf(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newTestRegistry(root string, ingestor *fakeIngestor, store *fakeManifest) *DocRegistry {
	return &DocRegistry{
		log:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		root:             root,
		mergeEventsDelay: 10 * time.Millisecond,
		extractor:        &txtExtractor{},
		ingestor:         ingestor,
		store:            store,
	}
}

func Test_Sync_IngestsNewDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "policy.txt", "procurement policy text")
	writeFile(t, root, "vendors.txt", "vendor list")

	ingestor := &fakeIngestor{}
	reg := newTestRegistry(root, ingestor, &fakeManifest{})

	require.NoError(t, reg.Sync(context.Background()))

	require.Len(t, ingestor.calls, 2)
	names := []string{ingestor.calls[0].filename, ingestor.calls[1].filename}
	assert.ElementsMatch(t, []string{"policy.txt", "vendors.txt"}, names)
}

func Test_Sync_SkipsUnchangedDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "policy.txt", "unchanged text")

	ingestor := &fakeIngestor{}
	store := &fakeManifest{entries: []docstore.ManifestEntry{{
		Filename:   "policy.txt",
		DocumentID: hashOf("unchanged text"),
	}}}
	reg := newTestRegistry(root, ingestor, store)

	require.NoError(t, reg.Sync(context.Background()))

	assert.Empty(t, ingestor.calls)
	assert.Empty(t, store.deleted)
}

func Test_Sync_ReingestsChangedDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "policy.txt", "new text")

	oldID := hashOf("old text")
	ingestor := &fakeIngestor{}
	store := &fakeManifest{entries: []docstore.ManifestEntry{{
		Filename:   "policy.txt",
		DocumentID: oldID,
	}}}
	reg := newTestRegistry(root, ingestor, store)

	require.NoError(t, reg.Sync(context.Background()))

	assert.Equal(t, []string{oldID}, store.deleted)
	require.Len(t, ingestor.calls, 1)
	assert.Equal(t, "new text", ingestor.calls[0].text)
}

func Test_Sync_ForgetsRemovedDocuments(t *testing.T) {
	root := t.TempDir()

	gone := hashOf("deleted file content")
	ingestor := &fakeIngestor{}
	store := &fakeManifest{entries: []docstore.ManifestEntry{{
		Filename:   "gone.txt",
		DocumentID: gone,
	}}}
	reg := newTestRegistry(root, ingestor, store)

	require.NoError(t, reg.Sync(context.Background()))

	assert.Empty(t, ingestor.calls)
	assert.Equal(t, []string{gone}, store.deleted)
}

func Test_Sync_IgnoresUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "image.png", "not a document")

	ingestor := &fakeIngestor{}
	reg := newTestRegistry(root, ingestor, &fakeManifest{})

	require.NoError(t, reg.Sync(context.Background()))
	assert.Empty(t, ingestor.calls)
}

func Test_Watch_SyncsOnFileChange(t *testing.T) {
	root := t.TempDir()
	ingestor := &fakeIngestor{}
	reg := newTestRegistry(root, ingestor, &fakeManifest{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = reg.Watch(ctx)
	}()

	// Give the watcher time to attach before producing the event.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, root, "policy.txt", "watched policy text")

	assert.Eventually(t, func() bool {
		return len(ingestor.calls) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
