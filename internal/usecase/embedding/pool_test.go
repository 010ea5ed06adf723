package embedding

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain"
)

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
	vec   []float32
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := NewPool(size, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	t.Cleanup(p.Release)
	return p
}

func TestPool_Embed(t *testing.T) {
	p := newTestPool(t, 2)
	e := &mockEmbedder{vec: []float32{1, 2}}

	res, err := p.Embed(context.Background(), e, "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(res.Embedding) != 2 {
		t.Errorf("expected 2-dim vector, got %d", len(res.Embedding))
	}
}

func TestPool_EmbedPropagatesError(t *testing.T) {
	p := newTestPool(t, 1)
	e := &mockEmbedder{err: errors.New("provider down")}

	if _, err := p.Embed(context.Background(), e, "text"); err == nil {
		t.Fatal("expected error from embedder")
	}
}

func TestPool_EmbedAsyncDeliversOnce(t *testing.T) {
	p := newTestPool(t, 1)
	e := &mockEmbedder{vec: []float32{1}}

	ch := p.EmbedAsync(context.Background(), e, "text")
	r := <-ch
	if r.Err != nil {
		t.Fatalf("async embed: %v", r.Err)
	}
	if len(r.Result.Embedding) != 1 {
		t.Errorf("expected vector, got %v", r.Result)
	}
}

func TestPool_BatchEmbedFallsBackPerText(t *testing.T) {
	p := newTestPool(t, 2)
	e := &mockEmbedder{vec: []float32{1}}

	res, err := p.BatchEmbed(context.Background(), e, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("expected 3 embeddings, got %d", len(res.Embeddings))
	}
	if e.calls != 3 {
		t.Errorf("expected 3 per-text calls, got %d", e.calls)
	}
	if res.TotalTokens != 9 {
		t.Errorf("expected aggregated usage 9, got %d", res.TotalTokens)
	}
}

func TestPool_EmbedCanceledContext(t *testing.T) {
	p := newTestPool(t, 1)
	e := &mockEmbedder{vec: []float32{1}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The wait is abandoned; the worker's result is discarded.
	_, err := p.Embed(ctx, e, "text")
	if err == nil {
		// The task may still have won the race; both outcomes are legal,
		// but a returned error must be the context's.
		return
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	p := newTestPool(t, 4)
	e := &mockEmbedder{vec: []float32{1}}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Embed(context.Background(), e, "text"); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()

	if e.calls != 32 {
		t.Errorf("expected 32 inferences, got %d", e.calls)
	}
}
