package embedding

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/metrics"
)

// AsyncResult is delivered on the channel returned by EmbedAsync.
type AsyncResult struct {
	Result domain.EmbeddingResult
	Err    error
}

// AsyncBatchResult is delivered on the channel returned by BatchEmbedAsync.
type AsyncBatchResult struct {
	Result domain.BatchEmbeddingResult
	Err    error
}

// Pool offloads model inference to a bounded worker pool so request
// goroutines suspend on a channel instead of running inference inline.
// With an unbounded approach a burst of queries would all hit the
// provider simultaneously; the pool caps concurrent inference at its
// size and queues the rest.
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger
}

// NewPool creates an inference worker pool of the given size.
func NewPool(size int, logger *zap.Logger) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	p, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create inference pool: %w", err)
	}
	return &Pool{pool: p, logger: logger}, nil
}

// Release shuts down the pool workers.
func (p *Pool) Release() {
	p.pool.Release()
}

// Running returns the number of in-flight inference tasks.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// EmbedAsync schedules one inference on the pool. The returned channel
// is buffered: if the caller abandons the wait, the worker still
// completes and the result is simply discarded (no partial-result
// semantics, embeddings are cheap to throw away).
func (p *Pool) EmbedAsync(ctx context.Context, e domain.Embedder, text string) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)

	if err := p.pool.Submit(func() {
		metrics.InferencePoolRunning.Set(float64(p.pool.Running()))
		res, err := e.Embed(ctx, text)
		ch <- AsyncResult{Result: res, Err: err}
	}); err != nil {
		ch <- AsyncResult{Err: fmt.Errorf("submit embed: %w", err)}
	}

	return ch
}

// BatchEmbedAsync schedules one batch inference on the pool.
func (p *Pool) BatchEmbedAsync(ctx context.Context, e domain.Embedder, texts []string) <-chan AsyncBatchResult {
	ch := make(chan AsyncBatchResult, 1)

	if err := p.pool.Submit(func() {
		metrics.InferencePoolRunning.Set(float64(p.pool.Running()))
		var res domain.BatchEmbeddingResult
		var err error
		if be, ok := e.(domain.BatchEmbedder); ok {
			res, err = be.BatchEmbed(ctx, texts)
		} else {
			res, err = domain.BatchFallback(ctx, e, texts)
		}
		ch <- AsyncBatchResult{Result: res, Err: err}
	}); err != nil {
		ch <- AsyncBatchResult{Err: fmt.Errorf("submit batch embed: %w", err)}
	}

	return ch
}

// Embed runs inference through the pool and waits for the outcome. The
// calling goroutine suspends on the channel; a canceled context stops
// the wait while the worker finishes and its result is discarded.
func (p *Pool) Embed(ctx context.Context, e domain.Embedder, text string) (domain.EmbeddingResult, error) {
	select {
	case r := <-p.EmbedAsync(ctx, e, text):
		return r.Result, r.Err
	case <-ctx.Done():
		return domain.EmbeddingResult{}, fmt.Errorf("embed wait: %w", ctx.Err())
	}
}

// BatchEmbed runs batch inference through the pool and waits for the outcome.
func (p *Pool) BatchEmbed(ctx context.Context, e domain.Embedder, texts []string) (domain.BatchEmbeddingResult, error) {
	select {
	case r := <-p.BatchEmbedAsync(ctx, e, texts):
		return r.Result, r.Err
	case <-ctx.Done():
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed wait: %w", ctx.Err())
	}
}
