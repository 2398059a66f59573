package fingerprint

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Chunk is one bounded span of concatenated page text with page attribution.
type Chunk struct {
	// Text is the chunk content, trimmed of surrounding whitespace.
	Text string
	// Pages is the sorted unique set of page numbers the chunk spans,
	// comma-joined (e.g. "3,4").
	Pages string
}

// Record is a passage record: the atomic unit embedded and searched.
type Record struct {
	ID         string
	DocID      string
	Version    string
	DocHash    string
	Source     string
	Pages      string
	ChunkIndex int
	Text       string
}

// ChunkPages walks the concatenated page text with a fixed stride, emitting
// overlapping chunks of up to size runes each.
//
// Pages are joined with a single separating space and every rune keeps a
// back-reference to its originating page, so each chunk reports exactly the
// pages its rune range spans. Stride is size-overlap, clamped to a minimum
// of 1; the last chunk may be shorter than size. Chunks that are empty after
// trimming are dropped. The walk is deterministic: identical inputs always
// produce identical chunk sequences.
func ChunkPages(pages []Page, size, overlap int) []Chunk {
	var full []rune
	var runeToPage []int

	for _, p := range pages {
		if len(full) > 0 {
			full = append(full, ' ')
			runeToPage = append(runeToPage, p.Number)
		}
		for _, r := range p.Text {
			full = append(full, r)
			runeToPage = append(runeToPage, p.Number)
		}
	}

	stride := size - overlap
	if stride < 1 {
		stride = 1
	}

	var chunks []Chunk
	for start := 0; start < len(full); start += stride {
		end := start + size
		if end > len(full) {
			end = len(full)
		}

		text := strings.TrimSpace(string(full[start:end]))
		if text == "" {
			continue
		}

		chunks = append(chunks, Chunk{
			Text:  text,
			Pages: joinPageSet(runeToPage[start:end]),
		})
	}

	return chunks
}

// joinPageSet renders the sorted unique page numbers of a rune range.
func joinPageSet(pageRefs []int) string {
	seen := make(map[int]bool, 4)
	var unique []int
	for _, p := range pageRefs {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	sort.Ints(unique)

	parts := make([]string, len(unique))
	for i, p := range unique {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

// BuildRecords assembles passage records for one document version.
//
// Record IDs derive from document ID, version, and sequence index, so a
// version's passages are stable across re-runs.
func BuildRecords(docID, version, docHash, source string, chunks []Chunk) []Record {
	records := make([]Record, len(chunks))
	for i, c := range chunks {
		records[i] = Record{
			ID:         fmt.Sprintf("%s::v%s::chunk-%d", docID, version, i),
			DocID:      docID,
			Version:    version,
			DocHash:    docHash,
			Source:     source,
			Pages:      c.Pages,
			ChunkIndex: i,
			Text:       c.Text,
		}
	}
	return records
}
