package budget

import (
	"testing"

	"github.com/snipara/contextd/internal/domain/section"
)

func makeSection(t *testing.T, id string, tokens int) section.Section {
	t.Helper()
	s, err := section.New(id, "title "+id, "body", "doc-1", "proj-1", tokens)
	if err != nil {
		t.Fatalf("section.New: %v", err)
	}
	return s
}

func TestPack_SkipsOversizedNotTruncates(t *testing.T) {
	ranked := []section.Section{
		makeSection(t, "s1", 50),
		makeSection(t, "s2", 120),
		makeSection(t, "s3", 30),
	}

	p := Pack(ranked, 100)

	if len(p.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(p.Sections))
	}
	if p.Sections[0].ID() != "s1" || p.Sections[1].ID() != "s3" {
		t.Errorf("expected [s1 s3], got [%s %s]", p.Sections[0].ID(), p.Sections[1].ID())
	}
	if p.TotalTokens != 80 {
		t.Errorf("expected 80 cumulative tokens, got %d", p.TotalTokens)
	}
	if p.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", p.Skipped)
	}
}

func TestPack_ContinuesAfterSkip(t *testing.T) {
	ranked := []section.Section{
		makeSection(t, "s1", 90),
		makeSection(t, "s2", 50),
		makeSection(t, "s3", 40),
		makeSection(t, "s4", 10),
	}

	p := Pack(ranked, 100)

	// s2 and s3 don't fit after s1; s4 does. Budget exhaustion is the
	// only stopping condition.
	if len(p.Sections) != 2 || p.Sections[1].ID() != "s4" {
		t.Fatalf("expected [s1 s4], got %d sections", len(p.Sections))
	}
	if p.TotalTokens != 100 {
		t.Errorf("expected exactly 100 tokens, got %d", p.TotalTokens)
	}
}

func TestPack_BudgetLargerThanAll(t *testing.T) {
	ranked := []section.Section{
		makeSection(t, "s1", 10),
		makeSection(t, "s2", 20),
	}

	p := Pack(ranked, 1000)
	if len(p.Sections) != 2 || p.TotalTokens != 30 || p.Skipped != 0 {
		t.Errorf("expected all packed, got %+v", p)
	}
}

func TestPack_NothingFits(t *testing.T) {
	ranked := []section.Section{makeSection(t, "s1", 500)}

	p := Pack(ranked, 100)
	if len(p.Sections) != 0 || p.TotalTokens != 0 || p.Skipped != 1 {
		t.Errorf("expected empty packing, got %+v", p)
	}
}

func TestPack_Empty(t *testing.T) {
	p := Pack(nil, 100)
	if len(p.Sections) != 0 || p.TotalTokens != 0 {
		t.Errorf("expected empty result, got %+v", p)
	}
}

func TestPack_OrderIsSelectionOrder(t *testing.T) {
	ranked := []section.Section{
		makeSection(t, "s1", 60),
		makeSection(t, "s2", 60),
		makeSection(t, "s3", 20),
	}

	p := Pack(ranked, 100)
	// s2 is skipped; output keeps fused-rank order, not reinsertion order.
	if p.Sections[0].ID() != "s1" || p.Sections[1].ID() != "s3" {
		t.Errorf("expected [s1 s3] in rank order, got [%s %s]",
			p.Sections[0].ID(), p.Sections[1].ID())
	}
}
