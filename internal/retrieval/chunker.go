// Package retrieval chunks character backgrounds and serves the slice most
// relevant to a query so that prompts stay within a size budget.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50

	chunkIDPrefixLen = 50
)

// Chunk is a bounded substring of a source text, the unit of relevance retrieval.
type Chunk struct {
	Content  string
	ID       string
	SourceID string
	Start    int
	End      int
	Index    int
}

// chunkText splits text into overlapping chunks. Window edges prefer a
// sentence boundary, then a word boundary, and fall back to the raw edge.
// Adjacent chunks share overlap bytes for context continuity.
func chunkText(text, sourceID string, chunkSize, overlap int) []Chunk {
	var chunks []Chunk
	textLen := len(text)
	start := 0

	for start < textLen {
		end := start + chunkSize
		if end < textLen {
			window := text[start:end]
			if idx := strings.LastIndex(window, ". "); idx > 0 {
				// Keep the period with the chunk.
				end = start + idx + 1
			} else if idx = strings.LastIndex(window, " "); idx > 0 {
				end = start + idx
			}
		} else {
			end = textLen
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Content:  content,
				ID:       chunkID(sourceID, start, content),
				SourceID: sourceID,
				Start:    start,
				End:      end,
				Index:    len(chunks),
			})
		}

		// Advance with overlap, clamped so every iteration makes progress.
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

func textFingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func chunkID(sourceID string, start int, content string) string {
	prefix := content
	if len(prefix) > chunkIDPrefixLen {
		prefix = prefix[:chunkIDPrefixLen]
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s_%d_%s", sourceID, start, prefix)))
	return hex.EncodeToString(sum[:])
}
