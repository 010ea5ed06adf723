package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/domain/mode"
	"github.com/snipara/contextd/internal/domain/query"
	"github.com/snipara/contextd/internal/domain/section"
)

// --- Mocks ---

type mockSectionReader struct {
	scoped []section.Section
	shared []section.Section
	err    error
}

func (m *mockSectionReader) ListByScope(_ context.Context, _ string) ([]section.Section, error) {
	return m.scoped, m.err
}

func (m *mockSectionReader) ListShared(_ context.Context) ([]section.Section, error) {
	return m.shared, nil
}

type mockSemanticScorer struct {
	precomputedIDs   []string // candidate ids received
	onTheFlyIDs      []string
	precomputedCalls int
	onTheFlyCalls    int
	precomputedErr   error
	onTheFlyErr      error
	smallDown        bool
}

func (m *mockSemanticScorer) ScorePrecomputed(
	_ context.Context, _ string, candidateIDs []string, _ string,
) ([]domain.Neighbor, error) {
	m.precomputedCalls++
	m.precomputedIDs = candidateIDs
	if m.precomputedErr != nil {
		return nil, m.precomputedErr
	}
	out := make([]domain.Neighbor, len(candidateIDs))
	for i, id := range candidateIDs {
		out[i] = domain.Neighbor{SectionID: id, Similarity: 1.0 - float64(i)*0.01}
	}
	return out, nil
}

func (m *mockSemanticScorer) ScoreOnTheFly(
	_ context.Context, _ string, candidates []section.Section,
) ([]domain.Neighbor, error) {
	m.onTheFlyCalls++
	m.onTheFlyIDs = m.onTheFlyIDs[:0]
	for i := range candidates {
		m.onTheFlyIDs = append(m.onTheFlyIDs, candidates[i].ID())
	}
	if m.onTheFlyErr != nil {
		return nil, m.onTheFlyErr
	}
	out := make([]domain.Neighbor, len(candidates))
	for i := range candidates {
		out[i] = domain.Neighbor{SectionID: candidates[i].ID(), Similarity: 0.9 - float64(i)*0.01}
	}
	return out, nil
}

func (m *mockSemanticScorer) OnTheFlyAvailable() bool { return !m.smallDown }

// --- Helpers ---

func scopedSection(t *testing.T, id, title, body string, tokens int) section.Section {
	t.Helper()
	s, err := section.New(id, title, body, "doc-1", "proj-1", tokens)
	if err != nil {
		t.Fatalf("section.New: %v", err)
	}
	return s
}

func sharedSection(t *testing.T, id, title, body string, mandatory bool) section.Section {
	t.Helper()
	s := scopedSection(t, id, title, body, 10)
	return s.WithSharing(true, mandatory)
}

func hybridQuery(t *testing.T, text string, tokenBudget int) query.Query {
	t.Helper()
	allowed := mode.NewSet(mode.Keyword, mode.Semantic, mode.Hybrid)
	q, err := query.New(text, tokenBudget, mode.Hybrid, "proj-1", allowed)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return q
}

func newTestService(reader *mockSectionReader, scorer *mockSemanticScorer) *Service {
	return NewService(reader, scorer, zap.NewNop())
}

// --- Tests ---

func TestRetrieve_HardCapBeforeSemantic(t *testing.T) {
	// 50 equally matching sections; at most 30 may enter semantic scoring.
	var scoped []section.Section
	for i := 0; i < 50; i++ {
		scoped = append(scoped, scopedSection(t,
			fmt.Sprintf("s%02d", i), "Billing Overview", "billing details", 10))
	}
	reader := &mockSectionReader{scoped: scoped}
	scorer := &mockSemanticScorer{}

	_, err := newTestService(reader, scorer).Retrieve(context.Background(), hybridQuery(t, "billing", 10000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if got := len(scorer.onTheFlyIDs); got > MaxSemanticCandidates {
		t.Errorf("%d candidates entered semantic scoring, cap is %d", got, MaxSemanticCandidates)
	}
}

func TestRetrieve_MandatorySharedOutsideSemanticCap(t *testing.T) {
	// A full survivor set plus mandatory shared sections: the cap must
	// hold for the semantic stage, and the mandatory sections must reach
	// the result without spending semantic slots.
	var scoped []section.Section
	for i := 0; i < 50; i++ {
		scoped = append(scoped, scopedSection(t,
			fmt.Sprintf("s%02d", i), "Billing Overview", "billing details", 10))
	}
	shared := []section.Section{
		sharedSection(t, "mand-a", "Legal Notice", "no overlap", true),
		sharedSection(t, "mand-b", "Security Policy", "no overlap", true),
	}
	reader := &mockSectionReader{scoped: scoped, shared: shared}
	scorer := &mockSemanticScorer{}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 10000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if got := len(scorer.onTheFlyIDs); got > MaxSemanticCandidates {
		t.Errorf("%d candidates entered semantic scoring, cap is %d", got, MaxSemanticCandidates)
	}
	for _, id := range scorer.onTheFlyIDs {
		if id == "mand-a" || id == "mand-b" {
			t.Errorf("mandatory shared section %s entered semantic scoring", id)
		}
	}

	got := map[string]bool{}
	for _, e := range res.Entries() {
		got[e.Section().ID()] = true
	}
	if !got["mand-a"] || !got["mand-b"] {
		t.Error("mandatory shared sections missing from result")
	}
}

func TestRetrieve_DropOffFilter(t *testing.T) {
	scoped := []section.Section{
		// Strong: multi-keyword title with coverage and phrase boosts.
		scopedSection(t, "strong", "Billing Webhooks", "billing webhooks detail", 10),
		// Weak: a single body mention, scores below max(0.1*top, 2.0).
		scopedSection(t, "weak", "Unrelated", "one billing mention buried in text", 10),
	}
	reader := &mockSectionReader{scoped: scoped}
	scorer := &mockSemanticScorer{}

	_, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing webhooks", 10000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	for _, id := range scorer.onTheFlyIDs {
		if id == "weak" {
			t.Error("below-threshold candidate entered semantic scoring")
		}
	}
	if len(scorer.onTheFlyIDs) != 1 || scorer.onTheFlyIDs[0] != "strong" {
		t.Errorf("expected only [strong], got %v", scorer.onTheFlyIDs)
	}
}

func TestRetrieve_SharedTitleFilterBeforeCap(t *testing.T) {
	// The shared section matches only in its body; it must be excluded
	// during candidate assembly, before scoring, drop-off, and cap.
	scoped := []section.Section{
		scopedSection(t, "own", "Billing", "billing details", 10),
	}
	shared := []section.Section{
		sharedSection(t, "shared-body", "Glossary", "billing billing billing billing", false),
		sharedSection(t, "shared-title", "Billing Terms", "generic text", false),
	}
	reader := &mockSectionReader{scoped: scoped, shared: shared}
	scorer := &mockSemanticScorer{}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 10000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	for _, id := range scorer.onTheFlyIDs {
		if id == "shared-body" {
			t.Error("body-only shared section passed the title filter")
		}
	}
	for _, e := range res.Entries() {
		if e.Section().ID() == "shared-body" {
			t.Error("body-only shared section reached the result")
		}
	}

	found := false
	for _, id := range scorer.onTheFlyIDs {
		if id == "shared-title" {
			found = true
		}
	}
	if !found {
		t.Error("title-matching shared section should be a candidate")
	}
}

func TestRetrieve_MandatorySharedAlwaysIncluded(t *testing.T) {
	scoped := []section.Section{
		scopedSection(t, "own", "Billing Webhooks", "billing webhooks", 10),
	}
	shared := []section.Section{
		sharedSection(t, "mandatory", "Legal Notice", "no keyword overlap at all", true),
	}
	reader := &mockSectionReader{scoped: scoped, shared: shared}
	scorer := &mockSemanticScorer{}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing webhooks", 10000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	found := false
	for _, e := range res.Entries() {
		if e.Section().ID() == "mandatory" {
			found = true
		}
	}
	if !found {
		t.Error("mandatory shared section missing from result")
	}
}

func TestRetrieve_KeywordTierSkipsSemantic(t *testing.T) {
	scoped := []section.Section{
		scopedSection(t, "s1", "Billing", "billing", 10),
	}
	reader := &mockSectionReader{scoped: scoped}
	scorer := &mockSemanticScorer{}

	allowed := mode.NewSet(mode.Keyword)
	q, err := query.New("billing", 1000, mode.Keyword, "proj-1", allowed)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(), q)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if scorer.precomputedCalls != 0 || scorer.onTheFlyCalls != 0 {
		t.Error("keyword-only tier must not reach semantic scoring")
	}
	if res.SemanticStage() != StageSkipped {
		t.Errorf("expected stage %q, got %q", StageSkipped, res.SemanticStage())
	}
	if len(res.Entries()) != 1 {
		t.Fatalf("expected lexical-only result, got %d entries", len(res.Entries()))
	}
}

func TestRetrieve_PrecomputedPathForStoredVectors(t *testing.T) {
	withVec := scopedSection(t, "vec", "Billing", "billing", 10).
		WithVector([]float32{0.1, 0.2})
	noVec := scopedSection(t, "fresh", "Billing Rates", "billing", 10)

	reader := &mockSectionReader{scoped: []section.Section{withVec, noVec}}
	scorer := &mockSemanticScorer{}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 10000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(scorer.precomputedIDs) != 1 || scorer.precomputedIDs[0] != "vec" {
		t.Errorf("expected precomputed path for [vec], got %v", scorer.precomputedIDs)
	}
	if len(scorer.onTheFlyIDs) != 1 || scorer.onTheFlyIDs[0] != "fresh" {
		t.Errorf("expected on-the-fly path for [fresh], got %v", scorer.onTheFlyIDs)
	}
	if res.SemanticStage() != StageMixed {
		t.Errorf("expected stage %q, got %q", StageMixed, res.SemanticStage())
	}
}

func TestRetrieve_PrecomputedFailureFailsQuery(t *testing.T) {
	withVec := scopedSection(t, "vec", "Billing", "billing", 10).
		WithVector([]float32{0.1, 0.2})
	reader := &mockSectionReader{scoped: []section.Section{withVec}}
	scorer := &mockSemanticScorer{
		precomputedErr: fmt.Errorf("%w: index gone", domain.ErrRetrievalFailed),
	}

	_, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 10000))
	if !errors.Is(err, domain.ErrRetrievalFailed) {
		t.Fatalf("expected retrieval failure, got %v", err)
	}
	if scorer.onTheFlyCalls != 0 {
		t.Error("must not silently fall back to on-the-fly after a precomputed failure")
	}
}

func TestRetrieve_OnTheFlyDegradesToLexical(t *testing.T) {
	scoped := []section.Section{
		scopedSection(t, "s1", "Billing", "billing", 10),
	}
	reader := &mockSectionReader{scoped: scoped}
	scorer := &mockSemanticScorer{smallDown: true}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 10000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if scorer.onTheFlyCalls != 0 {
		t.Error("degraded small model must not be invoked")
	}
	if res.SemanticStage() != StageSkipped {
		t.Errorf("expected stage %q, got %q", StageSkipped, res.SemanticStage())
	}
	if len(res.Entries()) != 1 {
		t.Fatalf("lexical ranking must still produce a result")
	}
}

func TestRetrieve_BudgetRespected(t *testing.T) {
	scoped := []section.Section{
		scopedSection(t, "s1", "Billing Part", "billing", 50),
		scopedSection(t, "s2", "Billing More", "billing", 120),
		scopedSection(t, "s3", "Billing Extra", "billing", 30),
	}
	reader := &mockSectionReader{scoped: scoped}
	scorer := &mockSemanticScorer{}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 100))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if res.TotalTokens() > 100 {
		t.Errorf("selection exceeds budget: %d tokens", res.TotalTokens())
	}
	for _, e := range res.Entries() {
		if e.Section().ID() == "s2" {
			t.Error("oversized section must be skipped, not truncated")
		}
	}
}

func TestRetrieve_StoreErrorPropagates(t *testing.T) {
	reader := &mockSectionReader{err: errors.New("connection refused")}
	scorer := &mockSemanticScorer{}

	_, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 1000))
	if err == nil {
		t.Fatal("expected error from section store")
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	reader := &mockSectionReader{}
	scorer := &mockSemanticScorer{}

	res, err := newTestService(reader, scorer).Retrieve(context.Background(),
		hybridQuery(t, "billing", 1000))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Entries()) != 0 || res.TotalTokens() != 0 {
		t.Errorf("expected empty result, got %d entries", len(res.Entries()))
	}
}
