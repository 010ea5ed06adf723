package section

import (
	"strings"
	"testing"
)

func TestNew_Valid(t *testing.T) {
	s, err := New("sec-1", "Pricing", "Plan details", "doc-1", "proj-a", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID() != "sec-1" || s.Title() != "Pricing" || s.Body() != "Plan details" {
		t.Errorf("fields not set: %+v", s)
	}
	if s.Shared() || s.SharedMandatory() {
		t.Error("new sections are private by default")
	}
	if s.HasVector() {
		t.Error("new sections carry no vector")
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name                                string
		id, title, body, documentID, projID string
		tokens                              int
	}{
		{"missing id", "", "t", "b", "doc-1", "proj-a", 0},
		{"no title or body", "sec-1", "", "", "doc-1", "proj-a", 0},
		{"body too large", "sec-1", "t", strings.Repeat("x", MaxBodySize+1), "doc-1", "proj-a", 0},
		{"missing document", "sec-1", "t", "b", "", "proj-a", 0},
		{"missing project", "sec-1", "t", "b", "doc-1", "", 0},
		{"negative tokens", "sec-1", "t", "b", "doc-1", "proj-a", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.title, tt.body, tt.documentID, tt.projID, tt.tokens)
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_TitleOnlyAndBodyOnly(t *testing.T) {
	if _, err := New("sec-1", "Title", "", "doc-1", "proj-a", 0); err != nil {
		t.Errorf("title-only should be valid: %v", err)
	}
	if _, err := New("sec-2", "", "Body", "doc-1", "proj-a", 0); err != nil {
		t.Errorf("body-only should be valid: %v", err)
	}
}

func TestWithTokens_DoesNotMutateOriginal(t *testing.T) {
	s, _ := New("sec-1", "t", "b", "doc-1", "proj-a", 0)
	s2 := s.WithTokens(42)

	if s.Tokens() != 0 {
		t.Errorf("original mutated: %d", s.Tokens())
	}
	if s2.Tokens() != 42 {
		t.Errorf("copy tokens: got %d", s2.Tokens())
	}
}

func TestWithVector(t *testing.T) {
	s, _ := New("sec-1", "t", "b", "doc-1", "proj-a", 0)
	s2 := s.WithVector([]float32{0.1, 0.2})

	if s.HasVector() {
		t.Error("original mutated")
	}
	if !s2.HasVector() || len(s2.Vector()) != 2 {
		t.Errorf("copy vector: %v", s2.Vector())
	}
}

func TestWithSharing(t *testing.T) {
	s, _ := New("sec-1", "t", "b", "doc-1", "proj-a", 0)
	s2 := s.WithSharing(true, true)

	if s.Shared() {
		t.Error("original mutated")
	}
	if !s2.Shared() || !s2.SharedMandatory() {
		t.Error("sharing flags not set on copy")
	}
}

func TestWithChain_OnReturnedValue(t *testing.T) {
	// Chained calls on a function return value must compile and stack.
	s := Reconstruct("sec-1", "t", "b", 0, "doc-1", "proj-a", false, false, nil).
		WithTokens(7).
		WithVector([]float32{0.5}).
		WithSharing(true, true)

	if s.Tokens() != 7 || !s.HasVector() || !s.Shared() || !s.SharedMandatory() {
		t.Errorf("chained copies lost state: %+v tokens=%d", s, s.Tokens())
	}
}

func TestReconstruct_SkipsValidation(t *testing.T) {
	s := Reconstruct("sec-1", "", "", 5, "doc-1", "proj-a", true, false, []float32{0.1})
	if s.ID() != "sec-1" || s.Tokens() != 5 || !s.Shared() {
		t.Errorf("unexpected section: %+v", s)
	}
	if !s.HasVector() {
		t.Error("vector should hydrate")
	}
}
