// Package budget packs ranked sections into a caller token budget.
package budget

import "github.com/snipara/contextd/internal/domain/section"

// Packed is the outcome of greedy budget packing.
type Packed struct {
	Sections    []section.Section
	TotalTokens int
	Skipped     int
}

// Pack greedily selects a subset of sections in ranked order whose
// cumulative token count fits the budget. A section whose own token
// count exceeds the remaining budget is skipped, never truncated, and
// the next-ranked section is tried; packing stops only when the budget
// or the candidates are exhausted. Output order equals selection order.
func Pack(ranked []section.Section, tokenBudget int) Packed {
	var p Packed
	remaining := tokenBudget

	for i := range ranked {
		if remaining <= 0 {
			p.Skipped += len(ranked) - i
			break
		}
		cost := ranked[i].Tokens()
		if cost > remaining {
			p.Skipped++
			continue
		}
		p.Sections = append(p.Sections, ranked[i])
		p.TotalTokens += cost
		remaining -= cost
	}

	return p
}
