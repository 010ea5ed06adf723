// Package semantic scores candidates by vector similarity to the query.
// Two paths exist: the precomputed path searches stored large-model
// vectors through the similarity-search collaborator, and the on-the-fly
// path embeds surviving candidates fresh with the small model.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/domain/section"
	"github.com/snipara/contextd/internal/usecase/embedding"
)

// snippetBodyLen caps how much body text enters an on-the-fly embedding.
// The small model's quality saturates quickly and latency does not.
const snippetBodyLen = 120

// Searcher is the consumer interface for nearest-neighbor search over
// stored section vectors.
type Searcher interface {
	Nearest(ctx context.Context, vector []float32, topK int, scope string) ([]domain.Neighbor, error)
}

// Scorer computes semantic similarity for a candidate set. The large
// model serves the precomputed path only; the on-the-fly path uses the
// small model exclusively. The two dimensionalities never mix.
type Scorer struct {
	searcher Searcher
	pool     *embedding.Pool
	large    domain.Embedder
	small    domain.Embedder // nil when the small model failed to load
	topK     int
	logger   *zap.Logger
}

// NewScorer creates a semantic scorer. A nil small embedder disables the
// on-the-fly path (degraded mode).
func NewScorer(
	searcher Searcher,
	pool *embedding.Pool,
	large, small domain.Embedder,
	topK int,
	logger *zap.Logger,
) *Scorer {
	if topK < 1 {
		topK = 50
	}
	return &Scorer{
		searcher: searcher,
		pool:     pool,
		large:    large,
		small:    small,
		topK:     topK,
		logger:   logger,
	}
}

// OnTheFlyAvailable reports whether the small model loaded.
func (s *Scorer) OnTheFlyAvailable() bool {
	return s.small != nil
}

// ScorePrecomputed embeds the query with the large model and ranks the
// given candidates by similarity to their stored vectors, via the
// nearest-neighbor collaborator. Candidates the collaborator does not
// return are absent from the result. A collaborator failure is a
// retrieval failure for the whole query, never a silent fallback.
func (s *Scorer) ScorePrecomputed(
	ctx context.Context,
	queryText string,
	candidateIDs []string,
	scope string,
) ([]domain.Neighbor, error) {
	res, err := s.pool.Embed(ctx, s.large, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrievalFailed, err)
	}

	neighbors, err := s.searcher.Nearest(ctx, res.Embedding, s.topK, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: nearest search: %w", domain.ErrRetrievalFailed, err)
	}

	wanted := make(map[string]struct{}, len(candidateIDs))
	for _, id := range candidateIDs {
		wanted[id] = struct{}{}
	}

	scored := make([]domain.Neighbor, 0, len(candidateIDs))
	for _, n := range neighbors {
		if _, ok := wanted[n.SectionID]; ok {
			scored = append(scored, n)
		}
	}

	return scored, nil
}

// ScoreOnTheFly embeds the query and every candidate with the small
// model and ranks candidates by cosine similarity. Returns an empty
// ranking when the small model is unavailable; the caller then proceeds
// with the lexical ranking alone.
func (s *Scorer) ScoreOnTheFly(
	ctx context.Context,
	queryText string,
	candidates []section.Section,
) ([]domain.Neighbor, error) {
	if s.small == nil {
		s.logger.Debug("small embedding model unavailable, skipping on-the-fly scoring")
		return nil, nil
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	queryRes, err := s.pool.Embed(ctx, s.small, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	texts := make([]string, len(candidates))
	for i := range candidates {
		texts[i] = snippet(&candidates[i])
	}

	batch, err := s.pool.BatchEmbed(ctx, s.small, texts)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(batch.Embeddings) != len(candidates) {
		return nil, fmt.Errorf("embed candidates: got %d vectors for %d texts",
			len(batch.Embeddings), len(candidates))
	}

	scored := make([]domain.Neighbor, len(candidates))
	for i := range candidates {
		scored[i] = domain.Neighbor{
			SectionID:  candidates[i].ID(),
			Similarity: CosineSimilarity(queryRes.Embedding, batch.Embeddings[i]),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	return scored, nil
}

// snippet builds the text embedded for a candidate: the title plus a
// short body prefix.
func snippet(sec *section.Section) string {
	body := sec.Body()
	if len(body) > snippetBodyLen {
		body = body[:snippetBodyLen]
	}
	if sec.Title() == "" {
		return body
	}
	if body == "" {
		return sec.Title()
	}
	return sec.Title() + "\n" + body
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when either has zero magnitude or the dimensions differ.
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
