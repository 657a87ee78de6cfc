package docstore

import (
	"errors"
	"fmt"
	"time"
)

// Category is the closed set of document classes. Each category maps to
// exactly one collection.
type Category string

const (
	CategoryPolicy     Category = "policy"
	CategoryVendor     Category = "vendor"
	CategoryCompliance Category = "compliance"
)

// Categories lists all known categories in priority order.
var Categories = []Category{CategoryPolicy, CategoryVendor, CategoryCompliance}

var collectionNames = map[Category]string{
	CategoryPolicy:     "procurement_policies",
	CategoryVendor:     "vendor_information",
	CategoryCompliance: "compliance_docs",
}

var ErrUnknownCategory = errors.New("unknown document category")

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := collectionNames[c]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}

	return c, nil
}

// ErrStoreBusy signals that the store's collections are unavailable,
// typically after a failed reset. The caller may retry.
var ErrStoreBusy = errors.New("session store is busy, retry later")

// Document describes one ingested document. The ID is the hash of the
// extracted text, so byte-identical uploads share an ID.
type Document struct {
	ID         string
	Filename   string
	Category   Category
	Text       string
	Metadata   map[string]string
	ReceivedAt time.Time
}

// Chunk is the unit of retrieval: a bounded slice of a document's text.
type Chunk struct {
	DocumentID string
	Index      int
	Total      int
	Text       string
}

// ManifestEntry summarizes a stored document for listing.
type ManifestEntry struct {
	Filename   string    `json:"filename"`
	Category   Category  `json:"category"`
	DocumentID string    `json:"document_id"`
	ChunkCount int       `json:"chunk_count"`
	ReceivedAt time.Time `json:"received_at"`
}

// Query describes one search. A zero Category fans out across all
// collections. Filters are matched exactly against chunk metadata and
// ANDed together.
type Query struct {
	Text     string
	Category Category
	TopK     int
	Filters  map[string]string
}

// SearchResult is one ranked match. Distance is nil when the backend did
// not report one; such results rank last.
type SearchResult struct {
	Category Category       `json:"category"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Distance *float64       `json:"distance,omitempty"`
}

// SessionInfo summarizes the current session contents.
type SessionInfo struct {
	TotalDocuments  int              `json:"total_documents"`
	DocumentsByType map[Category]int `json:"documents_by_type"`
	UploadedFiles   []string         `json:"uploaded_files"`
}
