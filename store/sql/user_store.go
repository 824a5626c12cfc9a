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

type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*userRecord](db, userHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid user repository wiring: %w", err)
		}
	}
	return &UserStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *UserStore) Create(ctx context.Context, in core.CreateUserInput) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	if err := in.Validate(); err != nil {
		return core.User{}, err
	}
	record := &userRecord{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: in.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		if repository.IsDuplicatedKey(err) {
			return core.User{}, core.ErrUsernameTaken
		}
		return core.User{}, err
	}
	return created.toDomain(), nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return core.User{}, fmt.Errorf("sqlstore: username is required")
	}
	record, err := s.repo.GetByIdentifier(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.User{}, core.ErrUserNotFound
		}
		return core.User{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) List(ctx context.Context) ([]core.User, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: user store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("created_at ASC"))
	if err != nil {
		return nil, err
	}
	users := make([]core.User, 0, len(records))
	for _, record := range records {
		users = append(users, record.toDomain())
	}
	return users, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id string, passwordHash string) (core.User, error) {
	if s == nil || s.repo == nil {
		return core.User{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.User{}, fmt.Errorf("sqlstore: user id is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return core.User{}, fmt.Errorf("sqlstore: password hash is required")
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.User{}, core.ErrUserNotFound
		}
		return core.User{}, err
	}
	current.PasswordHash = passwordHash

	updated, err := s.repo.Update(ctx, current, repository.UpdateByID(id))
	if err != nil {
		return core.User{}, err
	}
	return updated.toDomain(), nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: user store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return core.ErrUserNotFound
		}
		return err
	}
	return s.repo.Delete(ctx, record)
}

var _ core.UserStore = (*UserStore)(nil)
