package retrieval

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/myrjola/whodunit/internal/errors"
)

const (
	DefaultMaxChunksPerQuery = 3

	// charsPerToken approximates the character budget for a token budget.
	charsPerToken = 4

	// truncationMarker tells callers the returned context was cut.
	truncationMarker = "..."

	chunkSeparator = "\n\n"
)

// Embedder turns text into a vector for similarity search. It is optional:
// without one the index degrades to sequence-order retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CosineSimilarity computes the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type indexedSource struct {
	chunks []Chunk
	// vectors holds one embedding per chunk, or nil when embedding is
	// unavailable for this source.
	vectors [][]float32
	// fingerprint identifies the exact source text so that re-adding
	// identical text is a no-op.
	fingerprint string
}

// Index stores chunked source texts and answers bounded-context queries.
// It is shared between sessions and safe for concurrent use. The lock is never
// held across a call to the embedding backend.
type Index struct {
	mu                sync.Mutex
	chunkSize         int
	chunkOverlap      int
	maxChunksPerQuery int
	embedder          Embedder
	logger            *slog.Logger
	sources           map[string]indexedSource
}

// IndexOptions configures chunking and retrieval. Zero values fall back to defaults.
type IndexOptions struct {
	ChunkSize         int
	ChunkOverlap      int
	MaxChunksPerQuery int
}

// NewIndex creates an Index. A nil embedder enables the degraded
// sequence-order retrieval mode.
func NewIndex(logger *slog.Logger, embedder Embedder, opts IndexOptions) *Index {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.MaxChunksPerQuery <= 0 {
		opts.MaxChunksPerQuery = DefaultMaxChunksPerQuery
	}
	return &Index{
		mu:                sync.Mutex{},
		chunkSize:         opts.ChunkSize,
		chunkOverlap:      opts.ChunkOverlap,
		maxChunksPerQuery: opts.MaxChunksPerQuery,
		embedder:          embedder,
		logger:            logger.With("source", "retrieval.Index"),
		sources:           make(map[string]indexedSource),
	}
}

// AddSource chunks and indexes fullText under sourceID. Chunks for a source
// are replaced wholesale; there is no partial update. Re-adding unchanged
// text is a no-op, so restoring a session does not re-embed its sources.
// Embedding failures degrade the source to sequence-order retrieval instead
// of failing.
func (i *Index) AddSource(ctx context.Context, sourceID, fullText string) {
	fingerprint := textFingerprint(fullText)
	i.mu.Lock()
	existing, exists := i.sources[sourceID]
	i.mu.Unlock()
	if exists && existing.fingerprint == fingerprint && (i.embedder == nil || existing.vectors != nil) {
		return
	}

	chunks := chunkText(fullText, sourceID, i.chunkSize, i.chunkOverlap)

	var vectors [][]float32
	if i.embedder != nil && len(chunks) > 0 {
		vectors = make([][]float32, len(chunks))
		for idx, chunk := range chunks {
			vector, err := i.embedder.Embed(ctx, chunk.Content)
			if err != nil {
				i.logger.LogAttrs(ctx, slog.LevelWarn, "embed chunk, falling back to sequence order",
					slog.String("source_id", sourceID), errors.SlogError(err))
				vectors = nil
				break
			}
			vectors[idx] = vector
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.sources[sourceID] = indexedSource{chunks: chunks, vectors: vectors, fingerprint: fingerprint}
}

// Query returns up to maxTokens worth of the source's most relevant chunks for
// queryText, joined with a separator and truncated with a visible marker when
// cut. A source that was never added yields an empty string; callers fall back
// to the full untruncated text.
func (i *Index) Query(ctx context.Context, sourceID, queryText string, maxTokens int) string {
	i.mu.Lock()
	source, ok := i.sources[sourceID]
	i.mu.Unlock()
	if !ok || len(source.chunks) == 0 {
		return ""
	}

	chosen := i.selectChunks(ctx, source, sourceID, queryText)

	combined := make([]string, len(chosen))
	for idx, chunk := range chosen {
		combined[idx] = chunk.Content
	}
	result := strings.Join(combined, chunkSeparator)

	maxChars := maxTokens * charsPerToken
	if maxChars > 0 && len(result) > maxChars {
		result = result[:maxChars] + truncationMarker
	}
	return result
}

func (i *Index) selectChunks(ctx context.Context, source indexedSource, sourceID, queryText string) []Chunk {
	k := i.maxChunksPerQuery
	if k > len(source.chunks) {
		k = len(source.chunks)
	}

	if i.embedder == nil || source.vectors == nil {
		return source.chunks[:k]
	}

	queryVector, err := i.embedder.Embed(ctx, queryText)
	if err != nil {
		i.logger.LogAttrs(ctx, slog.LevelWarn, "embed query, falling back to sequence order",
			slog.String("source_id", sourceID), errors.SlogError(err))
		return source.chunks[:k]
	}

	type scored struct {
		chunk      Chunk
		similarity float64
	}
	ranked := make([]scored, len(source.chunks))
	for idx, chunk := range source.chunks {
		ranked[idx] = scored{chunk: chunk, similarity: CosineSimilarity(queryVector, source.vectors[idx])}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].similarity > ranked[b].similarity
	})

	chosen := make([]Chunk, k)
	for idx := range k {
		chosen[idx] = ranked[idx].chunk
	}
	return chosen
}

// RemoveSource drops a source and its chunks.
func (i *Index) RemoveSource(sourceID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.sources, sourceID)
}

// Clear drops all sources.
func (i *Index) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sources = make(map[string]indexedSource)
}

// IndexStats summarises the indexed content.
type IndexStats struct {
	Sources         int
	Chunks          int
	EmbeddedSources int
}

// Stats returns a snapshot of the index contents.
func (i *Index) Stats() IndexStats {
	i.mu.Lock()
	defer i.mu.Unlock()

	stats := IndexStats{Sources: len(i.sources), Chunks: 0, EmbeddedSources: 0}
	for _, source := range i.sources {
		stats.Chunks += len(source.chunks)
		if source.vectors != nil {
			stats.EmbeddedSources++
		}
	}
	return stats
}
