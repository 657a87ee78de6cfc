package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gamma-omg/procurement-mcp/docstore"
)

var ErrEmptyText = errors.New("document text is empty")

type Chunkifier interface {
	Chunkify(text string) []string
}

type DocStorer interface {
	Put(ctx context.Context, doc docstore.Document, chunks []docstore.Chunk) error
}

// Receipt reports the outcome of one ingestion.
type Receipt struct {
	Category   docstore.Category `json:"category"`
	ChunkCount int               `json:"chunk_count"`
	DocumentID string            `json:"document_id"`
}

// Ingestor turns extracted document text into stored, categorized chunks.
type Ingestor struct {
	chunkifier Chunkifier
	store      DocStorer
}

func NewIngestor(chunkifier Chunkifier, store DocStorer) *Ingestor {
	return &Ingestor{
		chunkifier: chunkifier,
		store:      store,
	}
}

// Store ingests one document: hashes the text into a content-addressed ID,
// categorizes it unless a category is given, chunks it, and puts the result
// into the session store. Identical text hashes to the same ID; re-ingestion
// appends rather than replaces.
func (ing *Ingestor) Store(ctx context.Context, text, filename string, metadata map[string]string, category docstore.Category) (Receipt, error) {
	if strings.TrimSpace(text) == "" {
		return Receipt{}, ErrEmptyText
	}

	if category == "" {
		category = Categorize(filename, text)
	} else if _, err := docstore.ParseCategory(string(category)); err != nil {
		return Receipt{}, err
	}

	sum := md5.Sum([]byte(text))
	doc := docstore.Document{
		ID:         hex.EncodeToString(sum[:]),
		Filename:   filename,
		Category:   category,
		Text:       text,
		Metadata:   metadata,
		ReceivedAt: time.Now(),
	}

	pieces := ing.chunkifier.Chunkify(text)
	chunks := make([]docstore.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, docstore.Chunk{
			DocumentID: doc.ID,
			Index:      i,
			Total:      len(pieces),
			Text:       p,
		})
	}

	if err := ing.store.Put(ctx, doc, chunks); err != nil {
		return Receipt{}, fmt.Errorf("failed to store document %s: %w", filename, err)
	}

	return Receipt{
		Category:   category,
		ChunkCount: len(chunks),
		DocumentID: doc.ID,
	}, nil
}
