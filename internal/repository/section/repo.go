// Package section is the document-store collaborator: read/write access
// to indexed sections persisted as Redis hashes.
package section

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/snipara/contextd/internal/db"
	dbredis "github.com/snipara/contextd/internal/db/redis"
	"github.com/snipara/contextd/internal/domain"
	domsec "github.com/snipara/contextd/internal/domain/section"
	searchrepo "github.com/snipara/contextd/internal/repository/search"
)

// store is the consumer interface for section persistence (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig holds index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo persists and hydrates sections.
type Repo struct {
	store     store
	keyPrefix string
	vectorDim int
	hnsw      HNSWConfig
}

// New creates a section repository. vectorDim is the large-model
// dimensionality the vector index is built with.
func New(s store, keyPrefix string, vectorDim int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, vectorDim: vectorDim}
}

// WithHNSW sets HNSW index build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

func (r *Repo) key(projectID, id string) string {
	return fmt.Sprintf("%ssec:%s:%s", r.keyPrefix, projectID, id)
}

// EnsureIndex creates the section vector index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	name := r.keyPrefix + "sections:idx"

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("probe index %s: %w", name, err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(name).
		Prefix(r.keyPrefix+"sec:").
		Tag("project").
		Tag("shared").
		VectorHNSW("vector", r.vectorDim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// SaveMulti persists sections (with their large-model vectors) in one
// pipelined round-trip. Re-saving an id overwrites the stored fields,
// which is how re-embedding on re-index works.
func (r *Repo) SaveMulti(ctx context.Context, sections []domsec.Section) error {
	if len(sections) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(sections))
	for i := range sections {
		s := &sections[i]
		fields := map[string]string{
			"id":      s.ID(),
			"title":   s.Title(),
			"body":    s.Body(),
			"tokens":  strconv.Itoa(s.Tokens()),
			"doc":     s.DocumentID(),
			"project": s.ProjectID(),
			"shared":  boolField(s.Shared()),
		}
		if s.SharedMandatory() {
			fields["mandatory"] = "1"
		}
		if s.HasVector() {
			fields["vector"] = dbredis.VectorToBytes(s.Vector())
		}
		items[i] = db.HashSetItem{Key: r.key(s.ProjectID(), s.ID()), Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("save sections: %w", err)
	}
	return nil
}

// Get fetches one section by project scope and id.
func (r *Repo) Get(ctx context.Context, projectID, id string) (domsec.Section, error) {
	fields, err := r.store.HGetAll(ctx, r.key(projectID, id))
	if err != nil {
		return domsec.Section{}, fmt.Errorf("get section %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domsec.Section{}, domain.ErrSectionNotFound
	}
	return hydrate(fields), nil
}

// ListByScope returns every section in a project scope.
func (r *Repo) ListByScope(ctx context.Context, projectID string) ([]domsec.Section, error) {
	pattern := fmt.Sprintf("%ssec:%s:*", r.keyPrefix, projectID)

	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("scan scope %s: %w", projectID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch scope %s: %w", projectID, err)
	}

	sections := make([]domsec.Section, 0, len(maps))
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		sections = append(sections, hydrate(m))
	}
	return sections, nil
}

// ListShared returns cross-tenant shared sections.
func (r *Repo) ListShared(ctx context.Context) ([]domsec.Section, error) {
	return r.ListByScope(ctx, searchrepo.SharedScope)
}

func hydrate(fields map[string]string) domsec.Section {
	tokens, _ := strconv.Atoi(fields["tokens"])

	var vector []float32
	if raw, ok := fields["vector"]; ok {
		vector = dbredis.BytesToVector(raw)
	}

	return domsec.Reconstruct(
		fields["id"], fields["title"], fields["body"], tokens,
		fields["doc"], fields["project"],
		fields["shared"] == "1", fields["mandatory"] == "1",
		vector,
	)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
