package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"gorm.io/gorm"
)

type ArchiveRepository struct {
	db *gorm.DB
}

var _ core.ArchiveStore = (*ArchiveRepository)(nil)

func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

func (r *ArchiveRepository) Append(ctx context.Context, e *domain.ArchiveEntry) error {
	if e == nil {
		return fmt.Errorf("%w: nil archive entry", domain.ErrValidation)
	}
	m := &archiveModel{
		RoomName:        string(e.RoomName),
		Password:        e.Password,
		RoomCreatedAt:   e.CreatedAt,
		RemovedAt:       e.DeletedAt,
		Reason:          string(e.Reason),
		MembersAtDelete: e.MembersAtDelete,
		MessageCount:    e.MessageCount,
		History:         e.History,
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return backend("append archive", err)
	}
	return nil
}

func (r *ArchiveRepository) Latest(ctx context.Context, name domain.RoomName) (*domain.ArchiveEntry, error) {
	var m archiveModel
	err := r.db.WithContext(ctx).Where("room_name = ?", string(name)).Order("id DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("archive %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, backend("find archive", err)
	}
	return m.toDomain(), nil
}

func (r *ArchiveRepository) List(ctx context.Context) ([]domain.ArchiveSummary, error) {
	var rows []archiveModel
	err := r.db.WithContext(ctx).
		Omit("History").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, backend("list archives", err)
	}
	out := make([]domain.ArchiveSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain().Summary())
	}
	return out, nil
}

func (r *ArchiveRepository) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&archiveModel{}).Count(&n).Error; err != nil {
		return 0, backend("count archives", err)
	}
	return int(n), nil
}
