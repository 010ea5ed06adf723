package query

import (
	"fmt"

	"github.com/snipara/contextd/internal/domain"
	"github.com/snipara/contextd/internal/domain/mode"
)

// Query parameter limits.
const (
	// MaxTextLength is the maximum allowed query text length.
	MaxTextLength = 4096
	// MaxTokenBudget caps the caller-supplied context budget.
	MaxTokenBudget = 200000
)

// Query is a validated retrieval request. Malformed queries (empty text,
// non-positive token budget) are rejected here, before any scoring work.
type Query struct {
	text        string
	tokenBudget int
	requested   mode.Mode
	projectID   string
	allowed     mode.Set
}

// New validates and normalizes query parameters.
// Default mode is hybrid; the requested mode must be within the caller's
// capability set resolved by the tier gate.
func New(text string, tokenBudget int, m mode.Mode, projectID string, allowed mode.Set) (Query, error) {
	if text == "" {
		return Query{}, fmt.Errorf("%w: query text is required", domain.ErrInvalidQuery)
	}
	if len(text) > MaxTextLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxTextLength)
	}
	if tokenBudget <= 0 {
		return Query{}, fmt.Errorf("%w: token budget must be positive", domain.ErrInvalidQuery)
	}
	if tokenBudget > MaxTokenBudget {
		tokenBudget = MaxTokenBudget
	}
	if projectID == "" {
		return Query{}, fmt.Errorf("%w: project scope is required", domain.ErrInvalidQuery)
	}
	if m == "" {
		m = mode.Hybrid
	}
	if !m.IsValid() {
		return Query{}, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidQuery, m)
	}
	if !allowed.Allows(m) {
		return Query{}, fmt.Errorf("%w: %s", domain.ErrModeNotAllowed, m)
	}

	return Query{
		text:        text,
		tokenBudget: tokenBudget,
		requested:   m,
		projectID:   projectID,
		allowed:     allowed,
	}, nil
}

// Text returns the raw query text.
func (q *Query) Text() string { return q.text }

// TokenBudget returns the caller's context token budget.
func (q *Query) TokenBudget() int { return q.tokenBudget }

// Mode returns the requested retrieval strategy.
func (q *Query) Mode() mode.Mode { return q.requested }

// ProjectID returns the tenant scope.
func (q *Query) ProjectID() string { return q.projectID }

// Allowed returns the caller's capability set.
func (q *Query) Allowed() mode.Set { return q.allowed }
