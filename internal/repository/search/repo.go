// Package search adapts the Redis FT.SEARCH KNN interface into the
// similarity-search collaborator contract the engine consumes.
package search

import (
	"context"
	"fmt"

	"github.com/snipara/contextd/internal/db"
	dbredis "github.com/snipara/contextd/internal/db/redis"
	"github.com/snipara/contextd/internal/domain"
)

// store is the consumer interface for KNN search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the similarity-search collaborator over FT.SEARCH.
// The index is assumed dimension-consistent with the large embedding
// model; the ingest path guarantees that.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a similarity-search repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// IndexName returns the FT index used for section vectors.
func (r *Repo) IndexName() string {
	return r.keyPrefix + "sections:idx"
}

// Nearest returns the topK sections most similar to the query vector
// within the given project scope. Shared sections are indexed under the
// shared pseudo-scope and included alongside the tenant's own.
func (r *Repo) Nearest(ctx context.Context, vector []float32, topK int, scope string) ([]domain.Neighbor, error) {
	filter := fmt.Sprintf("(%s | %s)",
		dbredis.TagFilter("project", scope),
		dbredis.TagFilter("project", SharedScope),
	)

	q := &db.KNNQuery{
		IndexName:    r.IndexName(),
		Filter:       filter,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{"id", "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", scope, err)
	}
	if sr == nil || sr.Total == 0 {
		return nil, nil
	}

	neighbors := make([]domain.Neighbor, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := entry.Fields["id"]
		if id == "" {
			continue
		}
		neighbors = append(neighbors, domain.Neighbor{SectionID: id, Similarity: entry.Score})
	}

	return neighbors, nil
}

// SharedScope is the pseudo-project under which cross-tenant shared
// sections are stored and indexed.
const SharedScope = "_shared"
