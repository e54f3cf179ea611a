package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/storage/password"
	"gorm.io/gorm"
)

type UserRepository struct {
	db     *gorm.DB
	hasher *password.Hasher
}

var _ core.Authenticator = (*UserRepository)(nil)

func NewUserRepository(db *gorm.DB, hasher *password.Hasher) *UserRepository {
	if hasher == nil {
		hasher = password.NewHasher()
	}
	return &UserRepository{db: db, hasher: hasher}
}

func (r *UserRepository) Register(ctx context.Context, cred domain.Credentials) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	hash, err := r.hasher.Hash(cred.Password)
	if err != nil {
		return backend("hash password", err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&userModel{}).Where("id = ?", string(cred.ID)).Count(&n).Error; err != nil {
			return backend("check user", err)
		}
		if n > 0 {
			return fmt.Errorf("user %q: %w", cred.ID, domain.ErrConflict)
		}
		if err := tx.Create(&userModel{ID: string(cred.ID), Hash: hash, CreatedAt: time.Now()}).Error; err != nil {
			return backend("create user", err)
		}
		return nil
	})
}

func (r *UserRepository) Authenticate(ctx context.Context, cred domain.Credentials) error {
	var m userModel
	err := r.db.WithContext(ctx).Where("id = ?", string(cred.ID)).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	if err != nil {
		return backend("find user", err)
	}
	if !r.hasher.Verify(cred.Password, m.Hash) {
		return fmt.Errorf("%w: bad credentials", domain.ErrUnauthorized)
	}
	return nil
}

func (r *UserRepository) Users(ctx context.Context) ([]domain.Identity, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&userModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, backend("list users", err)
	}
	out := make([]domain.Identity, len(ids))
	for i, id := range ids {
		out[i] = domain.Identity(id)
	}
	return out, nil
}
