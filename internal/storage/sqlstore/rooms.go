package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"gorm.io/gorm"
)

// RoomRepository is the SQL-backed core.RoomStore. Removed rooms are soft
// deleted, which frees the name for a fresh room.
type RoomRepository struct {
	db    *gorm.DB
	limit int
}

var _ core.RoomStore = (*RoomRepository)(nil)

func NewRoomRepository(db *gorm.DB, historyLimit int) *RoomRepository {
	if historyLimit <= 0 || historyLimit > domain.HistoryLimit {
		historyLimit = domain.HistoryLimit
	}
	return &RoomRepository{db: db, limit: historyLimit}
}

func backend(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrBackend, err)
}

func findLive(tx *gorm.DB, name domain.RoomName) (*roomModel, error) {
	var m roomModel
	err := tx.Where("name = ?", string(name)).Order("id DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, backend("find room", err)
	}
	return &m, nil
}

func (r *RoomRepository) Create(ctx context.Context, name domain.RoomName, password string) (*domain.Room, error) {
	var out *domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := findLive(tx, name)
		if err == nil {
			return fmt.Errorf("room %q: %w", name, domain.ErrConflict)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		m := &roomModel{Name: string(name), Password: password, CreatedAt: time.Now()}
		if err := tx.Create(m).Error; err != nil {
			return backend("create room", err)
		}
		out = m.toDomain()
		out.History = []domain.Message{}
		return nil
	})
	return out, err
}

func (r *RoomRepository) GetOrCreate(ctx context.Context, name domain.RoomName) (*domain.Room, bool, error) {
	var (
		out     *domain.Room
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := findLive(tx, name)
		if errors.Is(err, domain.ErrNotFound) {
			m = &roomModel{Name: string(name), CreatedAt: time.Now()}
			if err := tx.Create(m).Error; err != nil {
				return backend("create room", err)
			}
			created = true
		} else if err != nil {
			return err
		}
		out = m.toDomain()
		out.History, err = r.history(tx, m.ID)
		return err
	})
	return out, created, err
}

func (r *RoomRepository) Get(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	db := r.db.WithContext(ctx)
	m, err := findLive(db, name)
	if err != nil {
		return nil, err
	}
	room := m.toDomain()
	if room.History, err = r.history(db, m.ID); err != nil {
		return nil, err
	}
	return room, nil
}

// history returns the retained messages in chronological order.
func (r *RoomRepository) history(tx *gorm.DB, roomID uint) ([]domain.Message, error) {
	var rows []messageModel
	if err := tx.Where("room_id = ?", roomID).Order("id DESC").Limit(r.limit).Find(&rows).Error; err != nil {
		return nil, backend("load history", err)
	}
	out := make([]domain.Message, len(rows))
	for i := range rows {
		out[len(rows)-1-i] = rows[i].toDomain()
	}
	return out, nil
}

func (r *RoomRepository) List(ctx context.Context) ([]*domain.Room, error) {
	var rows []roomModel
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&rows).Error; err != nil {
		return nil, backend("list rooms", err)
	}
	out := make([]*domain.Room, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// AppendMessage stores msg, bumps the room's message count and evicts rows
// beyond the history limit in one transaction.
func (r *RoomRepository) AppendMessage(ctx context.Context, name domain.RoomName, msg domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := findLive(tx, name)
		if err != nil {
			return err
		}
		if err := tx.Create(newMessageModel(m.ID, msg)).Error; err != nil {
			return backend("insert message", err)
		}
		if err := tx.Model(&roomModel{}).Where("id = ?", m.ID).
			UpdateColumn("message_count", gorm.Expr("message_count + 1")).Error; err != nil {
			return backend("count message", err)
		}
		keep := tx.Model(&messageModel{}).Select("id").Where("room_id = ?", m.ID).Order("id DESC").Limit(r.limit)
		if err := tx.Where("room_id = ? AND id NOT IN (?)", m.ID, keep).Delete(&messageModel{}).Error; err != nil {
			return backend("evict messages", err)
		}
		return nil
	})
}

func (r *RoomRepository) Remove(ctx context.Context, name domain.RoomName) error {
	res := r.db.WithContext(ctx).Where("name = ?", string(name)).Delete(&roomModel{})
	if res.Error != nil {
		return backend("remove room", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("room %q: %w", name, domain.ErrNotFound)
	}
	return nil
}
