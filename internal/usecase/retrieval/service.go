// Package retrieval sequences lexical scoring, semantic scoring, rank
// fusion, and budget packing for one query, enforcing the latency
// safeguards between stages.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain/mode"
	"github.com/snipara/contextd/internal/domain/query"
	"github.com/snipara/contextd/internal/domain/result"
	"github.com/snipara/contextd/internal/domain/section"
	"github.com/snipara/contextd/internal/metrics"
	"github.com/snipara/contextd/internal/usecase/budget"
	"github.com/snipara/contextd/internal/usecase/fusion"
	"github.com/snipara/contextd/internal/usecase/lexical"
)

// Safeguards applied before semantic scoring. Broad queries (one common
// keyword) can match hundreds of sections; without these bounds a single
// query would embed them all.
const (
	// DropOffRatio discards candidates scoring below this fraction of
	// the top lexical score.
	DropOffRatio = 0.1
	// DropOffMin is the absolute score floor for the drop-off filter.
	DropOffMin = 2.0
	// MaxSemanticCandidates hard-caps the set entering semantic scoring.
	// Safe because RRF tail contributions past rank 30 are near zero.
	MaxSemanticCandidates = 30
)

// Per-query pipeline states, recorded in the wide event.
const (
	StateReceived      = "RECEIVED"
	StateLexicalScored = "LEXICAL_SCORED"
	StateFused         = "FUSED"
	StateBudgeted      = "BUDGETED"
	StateDone          = "DONE"
)

// Semantic stage labels reported on the result.
const (
	StagePrecomputed = "precomputed"
	StageOnTheFly    = "on_the_fly"
	StageMixed       = "mixed"
	StageSkipped     = "skipped"
)

// Service is the retrieval orchestrator.
type Service struct {
	sections SectionReader
	semantic SemanticScorer
	logger   *zap.Logger
}

// NewService creates the orchestrator.
func NewService(sections SectionReader, semantic SemanticScorer, logger *zap.Logger) *Service {
	return &Service{sections: sections, semantic: semantic, logger: logger}
}

// Retrieve runs one query through the pipeline and returns the packed
// selection. The query is already validated; the capability set it
// carries decides whether a semantic stage runs at all.
func (s *Service) Retrieve(ctx context.Context, q query.Query) (result.Ranked, error) {
	log := s.logger.With(
		zap.String("project_id", q.ProjectID()),
		zap.String("mode", string(q.Mode())),
	)
	log.Debug("query received", zap.String("state", StateReceived))

	keywords := lexical.ExtractKeywords(q.Text())

	candidates, err := s.loadCandidates(ctx, q.ProjectID(), keywords)
	if err != nil {
		return result.Ranked{}, err
	}

	scored := lexical.ScoreAll(candidates, keywords)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	log.Debug("lexical scoring done",
		zap.String("state", StateLexicalScored),
		zap.Int("candidates", len(scored)))

	survivors, mandatory := applySafeguards(scored)
	metrics.RetrievalCandidates.Observe(float64(len(survivors)))

	stage := StageSkipped
	var semanticRanking []string

	if q.Mode() != mode.Keyword && q.Allowed().SemanticAllowed() {
		semanticRanking, stage, err = s.scoreSemantic(ctx, q, survivors)
		if err != nil {
			return result.Ranked{}, err
		}
	}

	// Mandatory shared sections rejoin the pool after semantic scoring:
	// they are guaranteed candidates but never spend semantic slots.
	pool := append(survivors, mandatory...)

	lexRanking := make([]string, len(pool))
	for i := range pool {
		lexRanking[i] = pool[i].Section.ID()
	}

	fused := fusion.FuseRRF(lexRanking, semanticRanking)
	log.Debug("rankings fused",
		zap.String("state", StateFused),
		zap.String("semantic_stage", stage),
		zap.Int("fused", len(fused)))

	byID := make(map[string]*section.Section, len(pool))
	fusedScore := make(map[string]float64, len(fused))
	for i := range pool {
		byID[pool[i].Section.ID()] = &pool[i].Section
	}

	ordered := make([]section.Section, 0, len(fused))
	for _, f := range fused {
		sec, ok := byID[f.ID]
		if !ok {
			continue
		}
		ordered = append(ordered, *sec)
		fusedScore[f.ID] = f.Score
	}

	packed := budget.Pack(ordered, q.TokenBudget())
	log.Debug("budget packed",
		zap.String("state", StateBudgeted),
		zap.Int("selected", len(packed.Sections)),
		zap.Int("skipped", packed.Skipped),
		zap.Int("total_tokens", packed.TotalTokens))

	entries := make([]result.Entry, len(packed.Sections))
	for i := range packed.Sections {
		entries[i] = result.NewEntry(packed.Sections[i], fusedScore[packed.Sections[i].ID()])
	}

	log.Debug("query done", zap.String("state", StateDone))
	return result.New(entries, packed.TotalTokens, stage), nil
}

// loadCandidates pulls the tenant's own sections plus eligible shared
// sections. Non-mandatory shared sections join the pool only on a
// post-stem keyword title match; body matching is excluded because
// generic terms appear in the body of every shared document. This filter
// runs before the drop-off filter and the hard cap, so shared sections
// compete for the same candidate slots as scoped ones.
func (s *Service) loadCandidates(ctx context.Context, projectID string, keywords []string) ([]section.Section, error) {
	scoped, err := s.sections.ListByScope(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load sections %s: %w", projectID, err)
	}

	shared, err := s.sections.ListShared(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shared sections: %w", err)
	}

	candidates := scoped
	for i := range shared {
		if shared[i].SharedMandatory() || lexical.TitleMatches(&shared[i], keywords) {
			candidates = append(candidates, shared[i])
		}
	}
	return candidates, nil
}

// applySafeguards runs the drop-off filter and the hard cap over the
// descending lexical ranking. Mandatory shared sections are split out
// rather than filtered: they stay guaranteed candidates regardless of
// keyword relevance, but they bypass the semantic stage entirely so the
// capped survivor set is the only input to semantic scoring.
func applySafeguards(scored []lexical.Scored) (survivors, mandatory []lexical.Scored) {
	if len(scored) == 0 {
		return nil, nil
	}

	threshold := scored[0].Score * DropOffRatio
	if threshold < DropOffMin {
		threshold = DropOffMin
	}

	survivors = make([]lexical.Scored, 0, len(scored))
	for i := range scored {
		if scored[i].Section.SharedMandatory() {
			mandatory = append(mandatory, scored[i])
			continue
		}
		if scored[i].Score >= threshold {
			survivors = append(survivors, scored[i])
		}
	}

	if len(survivors) > MaxSemanticCandidates {
		survivors = survivors[:MaxSemanticCandidates]
	}
	return survivors, mandatory
}

// scoreSemantic runs the precomputed path for candidates with stored
// vectors and the on-the-fly path for the rest, and merges both into a
// single similarity-ordered ranking. A precomputed-path failure fails
// the query; there is no silent on-the-fly fallback.
func (s *Service) scoreSemantic(
	ctx context.Context,
	q query.Query,
	survivors []lexical.Scored,
) ([]string, string, error) {
	var withVectors []string
	var withoutVectors []section.Section
	for i := range survivors {
		if survivors[i].Section.HasVector() {
			withVectors = append(withVectors, survivors[i].Section.ID())
		} else {
			withoutVectors = append(withoutVectors, survivors[i].Section)
		}
	}

	type hit struct {
		id  string
		sim float64
	}
	var hits []hit

	stage := StageSkipped

	if len(withVectors) > 0 {
		neighbors, err := s.semantic.ScorePrecomputed(ctx, q.Text(), withVectors, q.ProjectID())
		if err != nil {
			return nil, "", err
		}
		for _, n := range neighbors {
			hits = append(hits, hit{id: n.SectionID, sim: n.Similarity})
		}
		stage = StagePrecomputed
	}

	if len(withoutVectors) > 0 && s.semantic.OnTheFlyAvailable() {
		neighbors, err := s.semantic.ScoreOnTheFly(ctx, q.Text(), withoutVectors)
		if err != nil {
			// On-the-fly embeddings are best-effort: the lexical ranking
			// still stands, so degrade instead of failing the query.
			s.logger.Warn("on-the-fly scoring failed, continuing lexical-only for those candidates",
				zap.Error(err))
		} else if len(neighbors) > 0 {
			for _, n := range neighbors {
				hits = append(hits, hit{id: n.SectionID, sim: n.Similarity})
			}
			if stage == StagePrecomputed {
				stage = StageMixed
			} else {
				stage = StageOnTheFly
			}
		}
	}

	if len(hits) == 0 {
		return nil, StageSkipped, nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].sim > hits[j].sim
	})

	ranking := make([]string, len(hits))
	for i, h := range hits {
		ranking[i] = h.id
	}
	return ranking, stage, nil
}
