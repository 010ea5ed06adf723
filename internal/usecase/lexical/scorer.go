// Package lexical scores sections by stemmed keyword overlap in titles
// and bodies. It has no learned representation; all matching is literal
// or stem-based substring matching.
package lexical

import (
	"regexp"
	"strings"

	"github.com/snipara/contextd/internal/domain/section"
)

// Scoring weights. Title matches dominate body matches; generic title
// terms are damped so ubiquitous words don't promote unrelated sections.
const (
	titleWeightDistinctive = 5.0
	titleWeightGeneric     = 1.5
	bodyWeight             = 1.0

	// avgBodyChars is the assumed average section body length for
	// BM25-style length normalization; lengthNormFloor keeps very long
	// sections from normalizing to zero.
	avgBodyChars    = 2000.0
	lengthNormFloor = 0.15
)

var wordSplit = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// ExtractKeywords tokenizes a query into scoring keywords: lowercased,
// split on non-alphanumerics, with stop words and single-char tokens
// dropped.
func ExtractKeywords(queryText string) []string {
	words := wordSplit.Split(strings.ToLower(queryText), -1)
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 2 || IsStopWord(w) {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// Scored pairs a section with its lexical score, preserving input order
// for equal scores (stable sort happens in the orchestrator).
type Scored struct {
	Section section.Section
	Score   float64
}

// Score computes the keyword relevance of one section. Title hits are
// weighted titleWeightDistinctive (or titleWeightGeneric for generic
// terms); body hits are length-normalized. A stem fallback matches
// morphological variants, e.g. "prices" (stem "pric") hits a title
// containing "pricing". Multi-keyword title coverage and an exact query
// phrase in the title multiply the score.
func Score(s *section.Section, keywords []string) float64 {
	score := 0.0
	titleLower := strings.ToLower(s.Title())
	bodyLower := strings.ToLower(s.Body())

	// BM25-style length normalization keeps long sections from dominating
	// via raw keyword counts.
	lengthNorm := 1.0 / (1.0 + 0.75*(float64(len(bodyLower))/avgBodyChars-1.0))
	if lengthNorm < lengthNormFloor {
		lengthNorm = lengthNormFloor
	}

	titleHits := 0

	for _, keyword := range keywords {
		if len(keyword) < 2 {
			continue
		}

		stem := Stem(keyword)

		titleCount := strings.Count(titleLower, keyword)
		if titleCount == 0 && stem != keyword {
			titleCount = strings.Count(titleLower, stem)
		}
		if titleCount > 0 {
			titleHits++
			if isGenericTitleTerm(keyword) || isGenericTitleTerm(stem) {
				score += float64(titleCount) * titleWeightGeneric
			} else {
				score += float64(titleCount) * titleWeightDistinctive
			}
		}

		bodyCount := strings.Count(bodyLower, keyword)
		if bodyCount == 0 && stem != keyword {
			bodyCount = strings.Count(bodyLower, stem)
		}
		score += float64(bodyCount) * bodyWeight * lengthNorm
	}

	// When multiple query keywords appear in the title, the section is
	// likely a direct topical match.
	if titleHits >= 2 {
		score *= 1.0 + float64(titleHits)*2.0
	}

	// Exact phrase of the significant query words appearing verbatim in
	// the title is a very strong signal.
	significant := keywords[:0:0]
	for _, w := range keywords {
		if len(w) >= 3 {
			significant = append(significant, w)
		}
	}
	if len(significant) >= 2 {
		phrase := strings.Join(significant[:min(4, len(significant))], " ")
		if strings.Contains(titleLower, phrase) {
			score *= 3.0
		}
	}

	return score
}

// ScoreAll scores every section against the extracted keywords,
// preserving input order.
func ScoreAll(sections []section.Section, keywords []string) []Scored {
	scored := make([]Scored, len(sections))
	for i := range sections {
		scored[i] = Scored{
			Section: sections[i],
			Score:   Score(&sections[i], keywords),
		}
	}
	return scored
}

// TitleMatches reports whether any post-stem, post-stop-word keyword
// matches the section title. Used for shared-context inclusion, where
// body matching is deliberately excluded: generic terms appear in the
// body of every shared document and would produce false positives.
func TitleMatches(s *section.Section, keywords []string) bool {
	titleLower := strings.ToLower(s.Title())
	for _, keyword := range keywords {
		if strings.Contains(titleLower, keyword) {
			return true
		}
		if stem := Stem(keyword); stem != keyword && strings.Contains(titleLower, stem) {
			return true
		}
	}
	return false
}
