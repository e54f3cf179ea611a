package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadRepository struct {
	db *gorm.DB
}

var _ core.BlobStore = (*UploadRepository)(nil)

func NewUploadRepository(db *gorm.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

func (r *UploadRepository) Store(ctx context.Context, data []byte, originalName, contentType string) (domain.FileRef, error) {
	m := &uploadModel{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		Size:         int64(len(data)),
		Mime:         contentType,
		Blob:         data,
		CreatedAt:    time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return domain.FileRef{}, backend("store upload", err)
	}
	return domain.FileRef{ID: m.ID, Name: m.OriginalName, URL: domain.FileURLPrefix + m.ID, Size: m.Size}, nil
}

func (r *UploadRepository) Retrieve(ctx context.Context, id string) ([]byte, *core.Blob, error) {
	var m uploadModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("file %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, backend("load upload", err)
	}
	ref := domain.FileRef{ID: m.ID, Name: m.OriginalName, URL: domain.FileURLPrefix + m.ID, Size: m.Size}
	return m.Blob, &core.Blob{Ref: ref, ContentType: m.Mime}, nil
}
