package main

import (
	"strings"

	"github.com/gamma-omg/procurement-mcp/docstore"
)

// Keyword lists per category, tested in order. The first matching rule
// wins; documents with no match default to policy.
var categoryKeywords = []struct {
	category docstore.Category
	keywords []string
}{
	{docstore.CategoryPolicy, []string{"policy", "procedure", "guideline", "standard operating"}},
	{docstore.CategoryVendor, []string{"vendor", "supplier", "contract", "rfp", "rfq"}},
	{docstore.CategoryCompliance, []string{"compliance", "regulation", "audit", "sox", "gdpr"}},
}

// Categorize assigns a document to a category from case-insensitive
// keyword matches against its filename or text.
func Categorize(filename, text string) docstore.Category {
	file := strings.ToLower(filename)
	body := strings.ToLower(text)

	for _, rule := range categoryKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(file, kw) || strings.Contains(body, kw) {
				return rule.category
			}
		}
	}

	return docstore.CategoryPolicy
}
