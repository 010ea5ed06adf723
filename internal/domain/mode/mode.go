package mode

// Mode is the retrieval strategy requested by a caller.
type Mode string

// Retrieval mode constants. Decompose and MultiQuery are tier capabilities
// consulted by the license gate; the engine itself executes the first three.
const (
	// Hybrid combines lexical and semantic scoring via rank fusion.
	Hybrid   Mode = "hybrid"
	Semantic Mode = "semantic"
	Keyword  Mode = "keyword"

	Decompose  Mode = "decompose"
	MultiQuery Mode = "multi_query"
)

// IsValid checks if the mode is a directly executable retrieval strategy.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}

// Set is a caller capability set resolved once per query by the tier gate
// and passed explicitly into the orchestrator.
type Set map[Mode]struct{}

// NewSet builds a capability set from the given modes.
func NewSet(modes ...Mode) Set {
	s := make(Set, len(modes))
	for _, m := range modes {
		s[m] = struct{}{}
	}
	return s
}

// Allows reports whether the capability set permits the given mode.
func (s Set) Allows(m Mode) bool {
	_, ok := s[m]
	return ok
}

// SemanticAllowed reports whether any semantic scoring is permitted.
func (s Set) SemanticAllowed() bool {
	return s.Allows(Semantic) || s.Allows(Hybrid)
}
