// Package embedding owns the process-wide dual-model embedding provider
// and the bounded worker pool that keeps model inference off request
// goroutines.
package embedding

import (
	"context"

	"github.com/snipara/contextd/internal/domain"
)

// Provider holds the two interchangeable embedding models. Both are
// constructed once at startup and shared read-only across all concurrent
// queries; the provider is passed by handle into consumers, never looked
// up ambiently, so tests can substitute mocks.
//
// The large model produces every persisted/indexed vector. The small
// model is used only for freshly computed, never-persisted vectors on
// the on-the-fly path. Their dimensionalities differ and must never be
// mixed within one similarity computation.
type Provider struct {
	large    domain.Embedder
	small    domain.Embedder
	largeDim int
	smallDim int
}

// NewProvider creates the dual-model provider. small may be nil: a
// failed small-model startup degrades the on-the-fly path to
// lexical-only scoring instead of failing readiness.
func NewProvider(large domain.Embedder, largeDim int, small domain.Embedder, smallDim int) *Provider {
	return &Provider{large: large, largeDim: largeDim, small: small, smallDim: smallDim}
}

// Large returns the high-accuracy model used for persisted vectors.
func (p *Provider) Large() domain.Embedder { return p.large }

// LargeDim returns the large model's vector dimensionality.
func (p *Provider) LargeDim() int { return p.largeDim }

// Small returns the fast model for on-the-fly scoring, or nil when the
// model failed to load (degraded mode).
func (p *Provider) Small() domain.Embedder { return p.small }

// SmallDim returns the small model's vector dimensionality.
func (p *Provider) SmallDim() int { return p.smallDim }

// SmallAvailable reports whether the on-the-fly path can embed at all.
func (p *Provider) SmallAvailable() bool { return p.small != nil }

// HealthCheck probes the large model; readiness requires it. The small
// model is deliberately excluded: its absence is a degraded state, not
// an outage.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if hc, ok := p.large.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
