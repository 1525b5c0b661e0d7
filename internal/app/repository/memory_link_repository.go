package repository

import (
	"context"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sifan077/linkbot/internal/app/model"
)

type ownerURL struct {
	ownerID int64
	url     string
}

// MemoryLinkRepository implements LinkRepository in process memory, for
// development without Postgres and for tests.
type MemoryLinkRepository struct {
	mu     sync.RWMutex
	nextID int64
	links  map[int64]model.Link
	byURL  map[ownerURL]int64
	now    func() time.Time
}

// NewMemoryLinkRepository creates an empty in-memory store.
func NewMemoryLinkRepository() *MemoryLinkRepository {
	return &MemoryLinkRepository{
		links: make(map[int64]model.Link),
		byURL: make(map[ownerURL]int64),
		now:   time.Now,
	}
}

func (m *MemoryLinkRepository) IsDuplicate(_ context.Context, ownerID int64, originalURL string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byURL[ownerURL{ownerID, originalURL}]
	return ok, nil
}

func (m *MemoryLinkRepository) Save(_ context.Context, link *model.Link) error {
	if utf8.RuneCountInString(link.Title) > model.MaxTitleLength {
		return ErrInvalidTitle
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerURL{link.OwnerID, link.OriginalURL}
	if _, ok := m.byURL[key]; ok {
		return ErrDuplicateLink
	}

	m.nextID++
	link.ID = m.nextID
	if link.CreatedAt.IsZero() {
		link.CreatedAt = m.now()
	}
	m.links[link.ID] = *link
	m.byURL[key] = link.ID
	return nil
}

func (m *MemoryLinkRepository) ListByOwner(_ context.Context, ownerID int64, limit, offset int) ([]model.Link, error) {
	m.mu.RLock()
	result := make([]model.Link, 0)
	for _, l := range m.links {
		if l.OwnerID == ownerID {
			result = append(result, l)
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		return result, nil
	}
	if offset >= len(result) {
		return []model.Link{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (m *MemoryLinkRepository) CountByOwner(_ context.Context, ownerID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, l := range m.links {
		if l.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryLinkRepository) GetByID(_ context.Context, id, ownerID int64) (*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.links[id]
	if !ok || l.OwnerID != ownerID {
		return nil, ErrLinkNotFound
	}
	return &l, nil
}

func (m *MemoryLinkRepository) GetByOriginalURL(_ context.Context, ownerID int64, originalURL string) (*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byURL[ownerURL{ownerID, originalURL}]
	if !ok {
		return nil, ErrLinkNotFound
	}
	l := m.links[id]
	return &l, nil
}

func (m *MemoryLinkRepository) Rename(_ context.Context, id, ownerID int64, title string) error {
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return ErrInvalidTitle
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok || l.OwnerID != ownerID {
		return ErrLinkNotFound
	}
	l.Title = title
	m.links[id] = l
	return nil
}

func (m *MemoryLinkRepository) Delete(_ context.Context, id, ownerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.links[id]
	if !ok || l.OwnerID != ownerID {
		return ErrLinkNotFound
	}
	delete(m.links, id)
	delete(m.byURL, ownerURL{l.OwnerID, l.OriginalURL})
	return nil
}
