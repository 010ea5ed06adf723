// Package index ingests sections: token counting, large-model
// embedding, and persistence into the vector index.
package index

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/domain/section"
	"github.com/snipara/contextd/internal/usecase/embedding"
)

// Repository persists sections and manages their vector index.
type Repository interface {
	EnsureIndex(ctx context.Context) error
	SaveMulti(ctx context.Context, sections []section.Section) error
}

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) (int, error)
}

// Service ingests sections. Every persisted vector comes from the large
// model; re-ingesting a section overwrites it, including its embedding.
type Service struct {
	repo    Repository
	pool    *embedding.Pool
	large   domain.Embedder
	counter TokenCounter
	logger  *zap.Logger
}

// NewService creates the ingest service.
func NewService(
	repo Repository,
	pool *embedding.Pool,
	large domain.Embedder,
	counter TokenCounter,
	logger *zap.Logger,
) *Service {
	return &Service{repo: repo, pool: pool, large: large, counter: counter, logger: logger}
}

// Ingest token-counts, embeds, and persists the given sections. Token
// counts already present on a section are trusted; zero counts are
// computed from title plus body. All embeddings are batched through the
// inference pool.
func (s *Service) Ingest(ctx context.Context, sections []section.Section) error {
	if len(sections) == 0 {
		return nil
	}

	if err := s.repo.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}

	prepared := make([]section.Section, len(sections))
	texts := make([]string, len(sections))
	for i := range sections {
		sec := sections[i]
		if sec.Tokens() == 0 {
			n, err := s.counter.Count(sec.Title() + "\n" + sec.Body())
			if err != nil {
				return fmt.Errorf("count tokens %s: %w", sec.ID(), err)
			}
			sec = sec.WithTokens(n)
		}
		prepared[i] = sec
		texts[i] = embedText(&sec)
	}

	batch, err := s.pool.BatchEmbed(ctx, s.large, texts)
	if err != nil {
		return fmt.Errorf("embed sections: %w", err)
	}
	if len(batch.Embeddings) != len(prepared) {
		return fmt.Errorf("embed sections: got %d vectors for %d sections",
			len(batch.Embeddings), len(prepared))
	}

	for i := range prepared {
		prepared[i] = prepared[i].WithVector(batch.Embeddings[i])
	}

	if err := s.repo.SaveMulti(ctx, prepared); err != nil {
		return fmt.Errorf("save sections: %w", err)
	}

	s.logger.Info("sections ingested",
		zap.Int("count", len(prepared)),
		zap.Int("embed_tokens", batch.TotalTokens))
	return nil
}

// embedText is what gets vectorized for the index: the title gives the
// topical signal, the body the detail.
func embedText(sec *section.Section) string {
	if sec.Title() == "" {
		return sec.Body()
	}
	if sec.Body() == "" {
		return sec.Title()
	}
	return sec.Title() + "\n" + sec.Body()
}
