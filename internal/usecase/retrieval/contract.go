package retrieval

import (
	"context"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/domain/section"
)

// SectionReader is the document store collaborator: it loads the indexed
// sections a query can draw from.
type SectionReader interface {
	ListByScope(ctx context.Context, projectID string) ([]section.Section, error)
	ListShared(ctx context.Context) ([]section.Section, error)
}

// SemanticScorer ranks candidates by vector similarity to the query.
type SemanticScorer interface {
	ScorePrecomputed(ctx context.Context, queryText string, candidateIDs []string, scope string) ([]domain.Neighbor, error)
	ScoreOnTheFly(ctx context.Context, queryText string, candidates []section.Section) ([]domain.Neighbor, error)
	OnTheFlyAvailable() bool
}
