package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-catalog-sync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type MappingStore struct {
	db   *bun.DB
	repo repository.Repository[*mappingRecord]
}

func NewMappingStore(db *bun.DB) (*MappingStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*mappingRecord](db, mappingHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid mapping repository wiring: %w", err)
		}
	}
	return &MappingStore{
		db:   db,
		repo: repo,
	}, nil
}

// List returns every mapping in creation order. The set is assumed small
// enough to load fully; there is no pagination.
func (s *MappingStore) List(ctx context.Context) ([]core.Mapping, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: mapping store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("created_at ASC"))
	if err != nil {
		return nil, err
	}
	mappings := make([]core.Mapping, 0, len(records))
	for _, record := range records {
		mappings = append(mappings, record.toDomain())
	}
	return mappings, nil
}

func (s *MappingStore) Get(ctx context.Context, id string) (core.Mapping, error) {
	if s == nil || s.repo == nil {
		return core.Mapping{}, fmt.Errorf("sqlstore: mapping store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Mapping{}, fmt.Errorf("sqlstore: mapping id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.Mapping{}, core.ErrMappingNotFound
		}
		return core.Mapping{}, err
	}
	return record.toDomain(), nil
}

func (s *MappingStore) Create(ctx context.Context, in core.CreateMappingInput) (core.Mapping, error) {
	if s == nil || s.repo == nil {
		return core.Mapping{}, fmt.Errorf("sqlstore: mapping store is not configured")
	}
	if err := in.Validate(); err != nil {
		return core.Mapping{}, err
	}
	record := &mappingRecord{
		ID:          uuid.NewString(),
		SourceID:    in.SourceID,
		TargetID:    in.TargetID,
		ProductName: strings.TrimSpace(in.ProductName),
		CreatedAt:   time.Now().UTC(),
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Mapping{}, err
	}
	return created.toDomain(), nil
}

func (s *MappingStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: mapping store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: mapping id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.ErrMappingNotFound
		}
		return err
	}
	return s.repo.Delete(ctx, record)
}

var _ core.MappingStore = (*MappingStore)(nil)
