package domain

// Neighbor is a single nearest-neighbor hit from the similarity-search
// collaborator. Similarity is normalized to [0, 1] where 1 is identical.
type Neighbor struct {
	SectionID  string
	Similarity float64
}
