package index

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/domain/section"
	"github.com/snipara/contextd/internal/usecase/embedding"
)

// --- Mocks ---

type mockRepo struct {
	saved     []section.Section
	ensured   int
	ensureErr error
	saveErr   error
}

func (m *mockRepo) EnsureIndex(_ context.Context) error {
	m.ensured++
	return m.ensureErr
}

func (m *mockRepo) SaveMulti(_ context.Context, sections []section.Section) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, sections...)
	return nil
}

type mockEmbedder struct {
	dims  int
	err   error
	texts []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.texts = append(m.texts, text)
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: make([]float32, m.dims), TotalTokens: 2}, nil
}

type mockCounter struct {
	perText int
	err     error
}

func (m *mockCounter) Count(_ string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.perText, nil
}

// --- Helpers ---

func newService(t *testing.T, repo *mockRepo, e *mockEmbedder, c *mockCounter) *Service {
	t.Helper()
	pool, err := embedding.NewPool(2, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(pool.Release)
	return NewService(repo, pool, e, c, zap.NewNop())
}

func makeSection(t *testing.T, id string, tokens int) section.Section {
	t.Helper()
	s, err := section.New(id, "Title "+id, "body text", "doc-1", "proj-1", tokens)
	if err != nil {
		t.Fatalf("section.New: %v", err)
	}
	return s
}

// --- Tests ---

func TestIngest_CountsEmbedsAndSaves(t *testing.T) {
	repo := &mockRepo{}
	emb := &mockEmbedder{dims: 8}
	counter := &mockCounter{perText: 7}
	s := newService(t, repo, emb, counter)

	sections := []section.Section{
		makeSection(t, "s1", 0),  // needs counting
		makeSection(t, "s2", 42), // count already present
	}

	if err := s.Ingest(context.Background(), sections); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if repo.ensured != 1 {
		t.Errorf("expected EnsureIndex once, got %d", repo.ensured)
	}
	if len(repo.saved) != 2 {
		t.Fatalf("expected 2 saved sections, got %d", len(repo.saved))
	}
	if repo.saved[0].Tokens() != 7 {
		t.Errorf("expected computed count 7, got %d", repo.saved[0].Tokens())
	}
	if repo.saved[1].Tokens() != 42 {
		t.Errorf("existing count must be trusted, got %d", repo.saved[1].Tokens())
	}
	for i, sec := range repo.saved {
		if !sec.HasVector() {
			t.Errorf("section %d saved without embedding", i)
		}
	}
}

func TestIngest_EmptyIsNoop(t *testing.T) {
	repo := &mockRepo{}
	s := newService(t, repo, &mockEmbedder{dims: 4}, &mockCounter{perText: 1})

	if err := s.Ingest(context.Background(), nil); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if repo.ensured != 0 || len(repo.saved) != 0 {
		t.Error("empty ingest must not touch the store")
	}
}

func TestIngest_EmbedFailureAborts(t *testing.T) {
	repo := &mockRepo{}
	emb := &mockEmbedder{err: errors.New("provider down")}
	s := newService(t, repo, emb, &mockCounter{perText: 1})

	err := s.Ingest(context.Background(), []section.Section{makeSection(t, "s1", 5)})
	if err == nil {
		t.Fatal("expected embed failure to abort ingest")
	}
	if len(repo.saved) != 0 {
		t.Error("nothing may be persisted after an embed failure")
	}
}

func TestIngest_EnsureIndexFailureAborts(t *testing.T) {
	repo := &mockRepo{ensureErr: errors.New("ft module missing")}
	emb := &mockEmbedder{dims: 4}
	s := newService(t, repo, emb, &mockCounter{perText: 1})

	err := s.Ingest(context.Background(), []section.Section{makeSection(t, "s1", 5)})
	if err == nil {
		t.Fatal("expected index failure to abort ingest")
	}
	if len(emb.texts) != 0 {
		t.Error("no embedding may run when the index cannot be created")
	}
}

func TestIngest_CounterFailureAborts(t *testing.T) {
	repo := &mockRepo{}
	s := newService(t, repo, &mockEmbedder{dims: 4}, &mockCounter{err: errors.New("encoding fetch failed")})

	err := s.Ingest(context.Background(), []section.Section{makeSection(t, "s1", 0)})
	if err == nil {
		t.Fatal("expected counter failure to abort ingest")
	}
}
