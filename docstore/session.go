package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// Chunk metadata attribute keys.
const (
	MetaDocumentID = "document_id"
	MetaFilename   = "filename"
	MetaCategory   = "category"
	MetaChunkIndex = "chunk_index"
	MetaChunkTotal = "chunk_total"
	MetaChunkSize  = "chunk_size"
	MetaReceivedAt = "received_at"
)

// collection is the slice of the chroma collection API the store uses.
// Narrowed so tests can stub it.
type collection interface {
	Add(ctx context.Context, opts ...chroma.CollectionUpdateOption) error
	Query(ctx context.Context, opts ...chroma.CollectionQueryOption) (chroma.QueryResult, error)
	Get(ctx context.Context, opts ...chroma.CollectionGetOption) (chroma.GetResult, error)
	Delete(ctx context.Context, opts ...chroma.CollectionDeleteOption) error
}

type SessionStoreConfig struct {
	BaseURL       string
	EmbeddingFunc embeddings.EmbeddingFunction
	RequestSize   int
}

// SessionStore keeps one chroma collection per category plus an
// insertion-ordered manifest of stored documents. All state is scoped to
// the current session: Reset drops everything, and nothing survives a
// process restart.
//
// The mutex guards the collection handles and the manifest. Embedding
// happens inside chroma calls, which run outside the write lock so slow
// upstream calls never stall readers.
type SessionStore struct {
	log         *slog.Logger
	client      chroma.Client
	ef          embeddings.EmbeddingFunction
	requestSize int

	mu       sync.RWMutex
	cols     map[Category]collection
	manifest []ManifestEntry
}

func NewSessionStore(ctx context.Context, log *slog.Logger, cfg SessionStoreConfig) (*SessionStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	s := &SessionStore{
		log:         log,
		client:      client,
		ef:          cfg.EmbeddingFunc,
		requestSize: cfg.RequestSize,
	}

	// Start from a clean slate: session data must not leak in from a
	// previous process.
	if err := s.Reset(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SessionStore) createCollections(ctx context.Context) (map[Category]collection, error) {
	cols := make(map[Category]collection, len(Categories))
	for _, cat := range Categories {
		col, err := s.client.GetOrCreateCollection(ctx, collectionNames[cat],
			chroma.WithEmbeddingFunctionCreate(s.ef))
		if err != nil {
			return nil, fmt.Errorf("failed to create collection %s: %w", collectionNames[cat], err)
		}

		cols[cat] = col
	}

	return cols, nil
}

func (s *SessionStore) collection(cat Category) (collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.cols[cat]
	if !ok || col == nil {
		return nil, fmt.Errorf("%w: no collection for category %s", ErrStoreBusy, cat)
	}

	return col, nil
}

// Put appends the document's chunks to the collection of its category and
// records a manifest entry. Re-ingesting identical text appends under the
// same document ID; the store does not deduplicate.
func (s *SessionStore) Put(ctx context.Context, doc Document, chunks []Chunk) error {
	if len(chunks) == 0 {
		return errors.New("document has no chunks")
	}

	col, err := s.collection(doc.Category)
	if err != nil {
		return err
	}

	batch := s.requestSize
	if batch <= 0 {
		batch = len(chunks)
	}

	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))

		ids := make([]chroma.DocumentID, 0, end-start)
		texts := make([]string, 0, end-start)
		metas := make([]chroma.DocumentMetadata, 0, end-start)
		for _, c := range chunks[start:end] {
			ids = append(ids, chroma.DocumentID(fmt.Sprintf("%s_chunk_%d", doc.ID, c.Index)))
			texts = append(texts, c.Text)
			metas = append(metas, chunkMetadata(doc, c))
		}

		err = col.Add(ctx,
			chroma.WithIDs(ids...),
			chroma.WithTexts(texts...),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to store chunks of %s: %w", doc.Filename, err)
		}
	}

	s.mu.Lock()
	s.manifest = append(s.manifest, ManifestEntry{
		Filename:   doc.Filename,
		Category:   doc.Category,
		DocumentID: doc.ID,
		ChunkCount: len(chunks),
		ReceivedAt: doc.ReceivedAt,
	})
	s.mu.Unlock()

	return nil
}

func chunkMetadata(doc Document, c Chunk) chroma.DocumentMetadata {
	attrs := []*chroma.MetaAttribute{
		chroma.NewStringAttribute(MetaDocumentID, doc.ID),
		chroma.NewStringAttribute(MetaFilename, doc.Filename),
		chroma.NewStringAttribute(MetaCategory, string(doc.Category)),
		chroma.NewIntAttribute(MetaChunkIndex, int64(c.Index)),
		chroma.NewIntAttribute(MetaChunkTotal, int64(c.Total)),
		chroma.NewIntAttribute(MetaChunkSize, int64(len(c.Text))),
		chroma.NewStringAttribute(MetaReceivedAt, doc.ReceivedAt.Format("2006-01-02T15:04:05Z07:00")),
	}
	for k, v := range doc.Metadata {
		attrs = append(attrs, chroma.NewStringAttribute(k, v))
	}

	return chroma.NewDocumentMetadata(attrs...)
}

// Search runs the query against one collection, or fans out across all of
// them when no category is given. A failing collection is logged and
// skipped; the search only fails when every queried collection failed.
// Merged results are sorted by ascending distance and truncated to TopK.
func (s *SessionStore) Search(ctx context.Context, q Query) ([]SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("query text cannot be empty")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", q.TopK)
	}

	targets := Categories
	if q.Category != "" {
		if _, err := ParseCategory(string(q.Category)); err != nil {
			return nil, err
		}

		targets = []Category{q.Category}
	}

	var merged []SearchResult
	var failures []error
	for _, cat := range targets {
		res, err := s.searchCollection(ctx, cat, q)
		if err != nil {
			s.log.Warn("collection query failed",
				slog.String("category", string(cat)),
				slog.String("error", err.Error()))
			failures = append(failures, fmt.Errorf("%s: %w", cat, err))
			continue
		}

		merged = append(merged, res...)
	}

	if len(failures) == len(targets) {
		return nil, fmt.Errorf("all collection queries failed: %w", errors.Join(failures...))
	}

	// Distances share one scale across collections, so ranking happens
	// after the fan-out. Missing distances go last.
	sort.SliceStable(merged, func(i, j int) bool {
		return distanceKey(merged[i]) < distanceKey(merged[j])
	})
	if len(merged) > q.TopK {
		merged = merged[:q.TopK]
	}

	return merged, nil
}

func distanceKey(r SearchResult) float64 {
	if r.Distance == nil {
		return math.Inf(1)
	}

	return *r.Distance
}

func (s *SessionStore) searchCollection(ctx context.Context, cat Category, q Query) ([]SearchResult, error) {
	col, err := s.collection(cat)
	if err != nil {
		return nil, err
	}

	opts := []chroma.CollectionQueryOption{
		chroma.WithQueryTexts(q.Text),
		chroma.WithNResults(q.TopK),
	}
	if w := whereFromFilters(q.Filters); w != nil {
		opts = append(opts, chroma.WithWhereQuery(w))
	}

	r, err := col.Query(ctx, opts...)
	if err != nil {
		return nil, err
	}

	docGroups := r.GetDocumentsGroups()
	if len(docGroups) == 0 {
		return nil, nil
	}

	docs := docGroups[0]
	var metas chroma.DocumentMetadatas
	if mg := r.GetMetadatasGroups(); len(mg) > 0 {
		metas = mg[0]
	}
	var dists embeddings.Distances
	if dg := r.GetDistancesGroups(); len(dg) > 0 {
		dists = dg[0]
	}

	res := make([]SearchResult, 0, len(docs))
	for i, doc := range docs {
		sr := SearchResult{
			Category: cat,
			Text:     doc.ContentString(),
		}
		if i < len(metas) {
			sr.Metadata = metadataMap(metas[i])
		}
		if i < len(dists) {
			d := float64(dists[i])
			sr.Distance = &d
		}

		res = append(res, sr)
	}

	return res, nil
}

func whereFromFilters(filters map[string]string) chroma.WhereFilter {
	if len(filters) == 0 {
		return nil
	}

	clauses := make([]chroma.WhereClause, 0, len(filters))
	for _, k := range sortedKeys(filters) {
		clauses = append(clauses, chroma.EqString(k, filters[k]))
	}
	if len(clauses) == 1 {
		return clauses[0]
	}

	return chroma.And(clauses...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// metadataMap flattens chunk metadata, custom document attributes included.
func metadataMap(meta chroma.DocumentMetadata) map[string]any {
	m := make(map[string]any)
	if keyer, ok := meta.(interface{ Keys() []string }); ok {
		for _, k := range keyer.Keys() {
			if v, ok := meta.GetRaw(k); ok {
				if mv, isWrapped := v.(chroma.MetadataValue); isWrapped {
					if raw, rawOK := mv.GetRaw(); rawOK {
						m[k] = raw
					}
					continue
				}
				m[k] = v
			}
		}
	}

	return m
}

// RelevantContext retrieves the topK chunks for a query across every
// collection and formats them as a single prompt context block.
func (s *SessionStore) RelevantContext(ctx context.Context, query string, topK int) (string, error) {
	results, err := s.Search(ctx, Query{Text: query, TopK: topK})
	if err != nil {
		return "", err
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		file := "Unknown"
		if v, ok := r.Metadata[MetaFilename].(string); ok {
			file = v
		}

		blocks = append(blocks, fmt.Sprintf("Source: %s\n%s", file, r.Text))
	}

	return strings.Join(blocks, "\n\n---\n\n"), nil
}

// Delete removes every chunk belonging to the document, from whichever
// collection holds them, and drops its manifest entries. Returns the
// number of chunks removed; an unknown ID removes nothing and is not an
// error.
func (s *SessionStore) Delete(ctx context.Context, documentID string) (int, error) {
	where := chroma.EqString(MetaDocumentID, documentID)

	removed := 0
	for _, cat := range Categories {
		col, err := s.collection(cat)
		if err != nil {
			return removed, err
		}

		res, err := col.Get(ctx, chroma.WithWhereGet(where))
		if err != nil {
			return removed, fmt.Errorf("failed to look up document %s in %s: %w", documentID, cat, err)
		}

		n := len(res.GetMetadatas())
		if n == 0 {
			continue
		}

		if err := col.Delete(ctx, chroma.WithWhereDelete(where)); err != nil {
			return removed, fmt.Errorf("failed to delete document %s from %s: %w", documentID, cat, err)
		}

		removed += n
	}

	s.mu.Lock()
	kept := s.manifest[:0]
	for _, e := range s.manifest {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	s.manifest = kept
	s.mu.Unlock()

	return removed, nil
}

// List returns manifest entries in insertion order.
func (s *SessionStore) List() []ManifestEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ManifestEntry, len(s.manifest))
	copy(out, s.manifest)

	return out
}

// DocumentCount reports how many documents the session holds.
func (s *SessionStore) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.manifest)
}

// Info summarizes the session by category.
func (s *SessionStore) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := SessionInfo{
		TotalDocuments:  len(s.manifest),
		DocumentsByType: make(map[Category]int, len(Categories)),
		UploadedFiles:   make([]string, 0, len(s.manifest)),
	}
	for _, cat := range Categories {
		info.DocumentsByType[cat] = 0
	}
	for _, e := range s.manifest {
		info.DocumentsByType[e.Category]++
		info.UploadedFiles = append(info.UploadedFiles, e.Filename)
	}

	return info
}

// Reset drops and recreates all collections and clears the manifest. If
// recreation fails the handles stay unset and mutating calls return
// ErrStoreBusy until a later Reset succeeds.
func (s *SessionStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cols = nil
	s.manifest = nil

	for _, cat := range Categories {
		// Ignore "not found": the collection may not exist yet.
		if err := s.client.DeleteCollection(ctx, collectionNames[cat]); err != nil {
			s.log.Warn("failed to delete collection",
				slog.String("collection", collectionNames[cat]),
				slog.String("error", err.Error()))
		}
	}

	cols, err := s.createCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset session store: %w", err)
	}

	s.cols = cols

	return nil
}
