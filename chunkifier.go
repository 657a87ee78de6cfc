package main

import "strings"

// separators in descending priority. The empty string stands for a plain
// character boundary and always matches.
var separators = []string{"\n\n", "\n", ".", "!", "?", ";", ",", " "}

type DefaultChunkifier struct {
	chunkSize    int
	chunkOverlap int
}

// Chunkify splits text into chunks of at most chunkSize characters.
// Each chunk ends at the highest-priority separator boundary available
// within its window, falling back to a plain character cut, and the next
// chunk re-includes the trailing chunkOverlap characters of the previous
// one. Output is deterministic for a given input and parameters.
func (c *DefaultChunkifier) Chunkify(text string) []string {
	l := len(text)
	if l == 0 {
		return []string{}
	}
	if l <= c.chunkSize {
		return []string{text}
	}

	res := make([]string, 0, l/(c.chunkSize-c.chunkOverlap)+1)
	pos := 0

	for {
		end := min(pos+c.chunkSize, l)
		if end < l {
			if cut := c.bestCut(text, pos, end); cut > 0 {
				end = cut
			}
		}

		res = append(res, text[pos:end])
		if end >= l {
			break
		}

		pos = end - c.chunkOverlap
	}

	return res
}

// bestCut finds the end of the last occurrence of the highest-priority
// separator within (start+overlap, limit], so every chunk carries content
// beyond the re-included overlap and the walk always advances. Returns 0
// when no separator fits.
func (c *DefaultChunkifier) bestCut(text string, start, limit int) int {
	window := text[start:limit]
	floor := start + c.chunkOverlap
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}

		cut := start + idx + len(sep)
		if cut > floor {
			return cut
		}
	}

	return 0
}
