package readers

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"code.sajari.com/docconv/v2"
)

// Extraction is the output of converting one file to plain text.
type Extraction struct {
	Text        string
	Filename    string
	ExtractedAt time.Time
}

// DocconvExtractor converts pdf, docx, odt, txt and xml files to text.
type DocconvExtractor struct{}

func (e *DocconvExtractor) CanRead(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".odt", ".txt", ".xml":
		return true
	default:
		return false
	}
}

func (e *DocconvExtractor) Extract(path string) (Extraction, error) {
	res, err := docconv.ConvertPath(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("failed to extract text from %s: %w", path, err)
	}

	return Extraction{
		Text:        res.Body,
		Filename:    filepath.Base(path),
		ExtractedAt: time.Now(),
	}, nil
}
