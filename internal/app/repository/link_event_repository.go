package repository

import (
	"context"

	"github.com/sifan077/linkbot/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkEventRepository stores the audit trail of link mutations.
type LinkEventRepository interface {
	Create(ctx context.Context, event *model.LinkEvent) error
	ListByLink(ctx context.Context, linkID int64) ([]model.LinkEvent, error)
}

type linkEventRepository struct {
	db *gorm.DB
}

// NewLinkEventRepository returns a GORM-backed LinkEventRepository.
func NewLinkEventRepository(db *gorm.DB) LinkEventRepository {
	return &linkEventRepository{db: db}
}

// Create inserts the event; redelivered events with a known id are ignored.
func (r *linkEventRepository) Create(ctx context.Context, event *model.LinkEvent) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
	if err != nil {
		return storageError("save link event", err)
	}
	return nil
}

func (r *linkEventRepository) ListByLink(ctx context.Context, linkID int64) ([]model.LinkEvent, error) {
	var events []model.LinkEvent
	if err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("timestamp ASC").
		Find(&events).Error; err != nil {
		return nil, storageError("list link events", err)
	}
	return events, nil
}
