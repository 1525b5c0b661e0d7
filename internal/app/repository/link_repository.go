package repository

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/linkbot/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the link does not exist or belongs to another owner.
	ErrLinkNotFound = errors.New("link not found")

	// ErrDuplicateLink signals that the owner already stored this original URL.
	ErrDuplicateLink = errors.New("link already exists")

	// ErrInvalidTitle signals a title longer than model.MaxTitleLength.
	ErrInvalidTitle = errors.New("title is too long")

	// ErrStorage wraps every other storage failure. The driver message is
	// flattened into the text so callers never see the raw driver error.
	ErrStorage = errors.New("storage failure")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// LinkRepository defines the data access contract for stored links.
//
// Every lookup and mutation is scoped to an owner: a link owned by somebody
// else behaves exactly like a missing one. Listings are ordered most recent
// first (created_at DESC, id DESC).
type LinkRepository interface {
	IsDuplicate(ctx context.Context, ownerID int64, originalURL string) (bool, error)
	Save(ctx context.Context, link *model.Link) error
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]model.Link, error)
	CountByOwner(ctx context.Context, ownerID int64) (int64, error)
	GetByID(ctx context.Context, id, ownerID int64) (*model.Link, error)
	GetByOriginalURL(ctx context.Context, ownerID int64, originalURL string) (*model.Link, error)
	Rename(ctx context.Context, id, ownerID int64, title string) error
	Delete(ctx context.Context, id, ownerID int64) error
}

type linkRepository struct {
	db     *gorm.DB
	filter *DuplicateFilter
}

// NewLinkRepository returns a GORM-backed LinkRepository. filter may be nil;
// when set it short-circuits IsDuplicate for pairs that were never stored.
func NewLinkRepository(db *gorm.DB, filter *DuplicateFilter) LinkRepository {
	return &linkRepository{db: db, filter: filter}
}

func (r *linkRepository) IsDuplicate(ctx context.Context, ownerID int64, originalURL string) (bool, error) {
	if r.filter != nil && !r.filter.MightExist(ownerID, originalURL) {
		return false, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("owner_id = ? AND original_url = ?", ownerID, originalURL).
		Count(&count).Error; err != nil {
		return false, storageError("check duplicate", err)
	}
	return count > 0, nil
}

func (r *linkRepository) Save(ctx context.Context, link *model.Link) error {
	if utf8.RuneCountInString(link.Title) > model.MaxTitleLength {
		return ErrInvalidTitle
	}

	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			if r.filter != nil {
				r.filter.Add(link.OwnerID, link.OriginalURL)
			}
			return ErrDuplicateLink
		}
		return storageError("save link", err)
	}

	if r.filter != nil {
		r.filter.Add(link.OwnerID, link.OriginalURL)
	}
	return nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]model.Link, error) {
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	var result []model.Link
	if err := q.Find(&result).Error; err != nil {
		return nil, storageError("list links", err)
	}
	return result, nil
}

func (r *linkRepository) CountByOwner(ctx context.Context, ownerID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error; err != nil {
		return 0, storageError("count links", err)
	}
	return count, nil
}

func (r *linkRepository) GetByID(ctx context.Context, id, ownerID int64) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, storageError("get link", err)
	}
	return &link, nil
}

func (r *linkRepository) GetByOriginalURL(ctx context.Context, ownerID int64, originalURL string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND original_url = ?", ownerID, originalURL).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, storageError("get link by url", err)
	}
	return &link, nil
}

func (r *linkRepository) Rename(ctx context.Context, id, ownerID int64, title string) error {
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return ErrInvalidTitle
	}

	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("title", title)
	if result.Error != nil {
		return storageError("rename link", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) Delete(ctx context.Context, id, ownerID int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&model.Link{})
	if result.Error != nil {
		return storageError("delete link", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
