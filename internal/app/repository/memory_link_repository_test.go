package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLinkRepository_SaveUniqueness(t *testing.T) {
	repo := NewMemoryLinkRepository()
	ctx := context.Background()

	first := &model.Link{OwnerID: 1, OriginalURL: "https://a.example", ShortURL: "https://vk.cc/a"}
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, int64(1), first.ID)

	err := repo.Save(ctx, &model.Link{OwnerID: 1, OriginalURL: "https://a.example"})
	assert.ErrorIs(t, err, ErrDuplicateLink)

	// another owner may store the same URL
	require.NoError(t, repo.Save(ctx, &model.Link{OwnerID: 2, OriginalURL: "https://a.example"}))

	dup, err := repo.IsDuplicate(ctx, 1, "https://a.example")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestMemoryLinkRepository_ConcurrentSave(t *testing.T) {
	repo := NewMemoryLinkRepository()
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Save(ctx, &model.Link{OwnerID: 5, OriginalURL: "https://same.example"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrDuplicateLink):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, dupes)
	n, _ := repo.CountByOwner(ctx, 5)
	assert.Equal(t, int64(1), n)
}

func TestMemoryLinkRepository_OwnershipIsolation(t *testing.T) {
	repo := NewMemoryLinkRepository()
	ctx := context.Background()

	link := &model.Link{OwnerID: 1, OriginalURL: "https://a.example", Title: "A"}
	require.NoError(t, repo.Save(ctx, link))

	_, err := repo.GetByID(ctx, link.ID, 2)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	assert.ErrorIs(t, repo.Rename(ctx, link.ID, 2, "Stolen"), ErrLinkNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, link.ID, 2), ErrLinkNotFound)
	assert.ErrorIs(t, repo.Rename(ctx, 999, 1, "Missing"), ErrLinkNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 999, 1), ErrLinkNotFound)

	got, err := repo.GetByID(ctx, link.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Title)
}

func TestMemoryLinkRepository_RenameDelete(t *testing.T) {
	repo := NewMemoryLinkRepository()
	ctx := context.Background()

	link := &model.Link{OwnerID: 1, OriginalURL: "https://a.example", Title: "A"}
	require.NoError(t, repo.Save(ctx, link))

	require.NoError(t, repo.Rename(ctx, link.ID, 1, "B"))
	got, err := repo.GetByOriginalURL(ctx, 1, "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Title)

	require.NoError(t, repo.Delete(ctx, link.ID, 1))
	_, err = repo.GetByID(ctx, link.ID, 1)
	assert.ErrorIs(t, err, ErrLinkNotFound)

	// the URL can be stored again after deletion
	require.NoError(t, repo.Save(ctx, &model.Link{OwnerID: 1, OriginalURL: "https://a.example"}))
}

func TestMemoryLinkRepository_ListByOwnerNewestFirst(t *testing.T) {
	repo := NewMemoryLinkRepository()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, u := range []string{"https://1.example", "https://2.example", "https://3.example"} {
		require.NoError(t, repo.Save(ctx, &model.Link{OwnerID: 1, OriginalURL: u}))
	}
	require.NoError(t, repo.Save(ctx, &model.Link{OwnerID: 2, OriginalURL: "https://other.example"}))

	all, err := repo.ListByOwner(ctx, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "https://3.example", all[0].OriginalURL)
	assert.Equal(t, "https://1.example", all[2].OriginalURL)

	page, err := repo.ListByOwner(ctx, 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "https://1.example", page[0].OriginalURL)

	empty, err := repo.ListByOwner(ctx, 1, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
