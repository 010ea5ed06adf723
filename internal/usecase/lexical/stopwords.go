package lexical

// stopWords are excluded from keyword scoring to prevent false title
// matches. Without this, "what are prices?" ranks "What Happens When
// Limits Are Exceeded" above actual pricing content because "what" and
// "are" get the title weight.
var stopWords = map[string]struct{}{
	// Articles, auxiliaries, modals
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "shall": {}, "can": {}, "need": {},
	// Prepositions
	"to": {}, "of": {}, "in": {}, "for": {}, "on": {}, "with": {}, "at": {},
	"by": {}, "from": {}, "as": {}, "into": {}, "through": {}, "during": {},
	"before": {}, "after": {}, "above": {}, "below": {}, "between": {},
	"out": {}, "off": {}, "over": {}, "under": {}, "again": {}, "further": {},
	// Adverbs and conjunctions
	"then": {}, "once": {}, "here": {}, "there": {}, "when": {}, "where": {},
	"why": {}, "how": {}, "all": {}, "both": {}, "each": {}, "few": {},
	"more": {}, "most": {}, "other": {}, "some": {}, "such": {}, "no": {},
	"nor": {}, "not": {}, "only": {}, "own": {}, "same": {}, "so": {},
	"than": {}, "too": {}, "very": {}, "just": {}, "because": {}, "but": {},
	"and": {}, "or": {}, "if": {},
	// Pronouns and determiners
	"what": {}, "which": {}, "who": {}, "whom": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "it": {}, "its": {}, "my": {}, "your": {},
	"his": {}, "her": {}, "our": {}, "their": {}, "about": {}, "up": {},
	"also": {}, "any": {}, "many": {}, "much": {},
	// Generic nouns that appear in many queries but aren't distinctive
	"value": {}, "proposition": {}, "core": {}, "main": {}, "key": {},
	"primary": {}, "work": {}, "works": {}, "working": {}, "feature": {},
	"features": {}, "thing": {}, "things": {}, "something": {}, "everything": {},
	// Common verbs that don't add search value
	"use": {}, "used": {}, "using": {}, "get": {}, "gets": {}, "getting": {},
	"make": {}, "makes": {}, "making": {}, "see": {}, "sees": {}, "seeing": {},
	"know": {}, "knows": {}, "knowing": {}, "think": {}, "thinks": {},
	"want": {}, "wants": {}, "wanting": {}, "like": {}, "likes": {},
}

// genericTitleTerms get reduced title weight because they appear in many
// unrelated section titles and cause false matches.
var genericTitleTerms = map[string]struct{}{
	"tools": {}, "tool": {}, "guide": {}, "reference": {}, "overview": {},
	"docs": {},
	"how":  {}, "what": {}, "when": {}, "where": {}, "why": {},
	"using": {}, "use": {}, "get": {}, "set": {}, "run": {}, "make": {},
	"available": {}, "not": {}, "error": {}, "issue": {}, "troubleshoot": {},
}

// IsStopWord reports whether w is in the closed stop-word list.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

func isGenericTitleTerm(w string) bool {
	_, ok := genericTitleTerms[w]
	return ok
}
