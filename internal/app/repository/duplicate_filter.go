package repository

import (
	"context"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sifan077/linkbot/internal/app/model"
	"gorm.io/gorm"
)

// DuplicateFilter is a bloom filter over (owner, original URL) pairs.
// MightExist == false means the pair was never stored; true means "ask the database".
type DuplicateFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

// NewDuplicateFilter sizes the filter for expectedItems at the given false positive rate.
func NewDuplicateFilter(expectedItems uint, falsePositiveRate float64) *DuplicateFilter {
	return &DuplicateFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

func (f *DuplicateFilter) Add(ownerID int64, originalURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(filterKey(ownerID, originalURL))
}

func (f *DuplicateFilter) MightExist(ownerID int64, originalURL string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(filterKey(ownerID, originalURL))
}

// Count returns the approximate number of pairs added.
func (f *DuplicateFilter) Count() uint32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.ApproximatedSize()
}

// Warm loads every stored pair into the filter. Deleted links stay in the
// filter until restart, which only costs an extra query.
func (f *DuplicateFilter) Warm(ctx context.Context, db *gorm.DB) (int, error) {
	rows, err := db.WithContext(ctx).
		Model(&model.Link{}).
		Select("owner_id", "original_url").
		Rows()
	if err != nil {
		return 0, storageError("warm duplicate filter", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			ownerID     int64
			originalURL string
		)
		if err := rows.Scan(&ownerID, &originalURL); err != nil {
			return n, storageError("warm duplicate filter", err)
		}
		f.Add(ownerID, originalURL)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, storageError("warm duplicate filter", err)
	}
	return n, nil
}

func filterKey(ownerID int64, originalURL string) string {
	return strconv.FormatInt(ownerID, 10) + "|" + originalURL
}
