package result

import "github.com/snipara/contextd/internal/domain/section"

// Entry is a single selected passage with its fused relevance score.
type Entry struct {
	section section.Section
	score   float64
}

// NewEntry creates a result entry.
func NewEntry(s section.Section, score float64) Entry {
	return Entry{section: s, score: score}
}

// Section returns the selected section.
func (e *Entry) Section() *section.Section { return &e.section }

// Score returns the fused relevance score.
func (e *Entry) Score() float64 { return e.score }

// Ranked is the ordered selection returned to the caller, immutable once
// produced. Order is fused-rank order; TotalTokens never exceeds the
// query budget.
type Ranked struct {
	entries     []Entry
	totalTokens int
	stage       string
}

// New creates a ranked result.
func New(entries []Entry, totalTokens int, stage string) Ranked {
	return Ranked{entries: entries, totalTokens: totalTokens, stage: stage}
}

// Entries returns the selected passages in fused-rank order.
func (r *Ranked) Entries() []Entry { return r.entries }

// TotalTokens returns the cumulative token count of the selection.
func (r *Ranked) TotalTokens() int { return r.totalTokens }

// SemanticStage reports which semantic path the orchestrator took
// (precomputed, on_the_fly, or skipped).
func (r *Ranked) SemanticStage() string { return r.stage }
