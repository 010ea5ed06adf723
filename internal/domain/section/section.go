package section

import "fmt"

// MaxBodySize is the maximum section body size in bytes.
const MaxBodySize = 163840 // 160KB

// Section is a unit of indexed content (immutable value object).
// Sections are created at ingest time and owned by the index; the engine
// only reads them. The stored vector, when present, always comes from the
// large embedding model.
type Section struct {
	id              string
	title           string
	body            string
	tokens          int
	documentID      string
	projectID       string
	shared          bool
	sharedMandatory bool
	vector          []float32
}

// New validates and creates a Section. The token count may be zero here;
// the ingest service fills it in before persisting.
func New(id, title, body, documentID, projectID string, tokens int) (Section, error) {
	if id == "" {
		return Section{}, fmt.Errorf("section ID is required")
	}
	if title == "" && body == "" {
		return Section{}, fmt.Errorf("section must have a title or body")
	}
	if len(body) > MaxBodySize {
		return Section{}, fmt.Errorf("body too large (max %d bytes)", MaxBodySize)
	}
	if documentID == "" {
		return Section{}, fmt.Errorf("document ID is required")
	}
	if projectID == "" {
		return Section{}, fmt.Errorf("project ID is required")
	}
	if tokens < 0 {
		return Section{}, fmt.Errorf("token count must be non-negative")
	}

	return Section{
		id: id, title: title, body: body, tokens: tokens,
		documentID: documentID, projectID: projectID,
	}, nil
}

// Reconstruct creates a Section without validation (storage hydration).
func Reconstruct(
	id, title, body string, tokens int,
	documentID, projectID string,
	shared, sharedMandatory bool,
	vector []float32,
) Section {
	return Section{
		id: id, title: title, body: body, tokens: tokens,
		documentID: documentID, projectID: projectID,
		shared: shared, sharedMandatory: sharedMandatory,
		vector: vector,
	}
}

// ID returns the section identifier.
func (s *Section) ID() string { return s.id }

// Title returns the section title.
func (s *Section) Title() string { return s.title }

// Body returns the section body text.
func (s *Section) Body() string { return s.body }

// Tokens returns the section token count.
func (s *Section) Tokens() int { return s.tokens }

// DocumentID returns the owning document identifier.
func (s *Section) DocumentID() string { return s.documentID }

// ProjectID returns the owning project (tenant) identifier.
func (s *Section) ProjectID() string { return s.projectID }

// Shared reports whether the section belongs to a cross-tenant shared document.
func (s *Section) Shared() bool { return s.shared }

// SharedMandatory reports whether a shared section is always included
// regardless of keyword relevance.
func (s *Section) SharedMandatory() bool { return s.sharedMandatory }

// Vector returns the stored large-model embedding, or nil when not indexed.
func (s *Section) Vector() []float32 { return s.vector }

// HasVector reports whether a precomputed embedding is stored.
func (s *Section) HasVector() bool { return len(s.vector) > 0 }

// WithTokens returns a copy with the token count set.
func (s Section) WithTokens(n int) Section {
	s.tokens = n
	return s
}

// WithVector returns a copy with the stored embedding set (re-embedding on re-index).
func (s Section) WithVector(v []float32) Section {
	s.vector = v
	return s
}

// WithSharing returns a copy with the shared-document flags set.
func (s Section) WithSharing(shared, mandatory bool) Section {
	s.shared = shared
	s.sharedMandatory = mandatory
	return s
}
