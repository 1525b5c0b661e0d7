package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/sifan077/linkbot/internal/app/repository"
	"go.uber.org/zap"
)

// LinkService defines behaviour-level operations on a user's links.
// Every method is scoped to the owner; foreign links look missing.
type LinkService interface {
	IsDuplicate(ctx context.Context, ownerID int64, originalURL string) (bool, error)
	Create(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	List(ctx context.Context, ownerID int64) ([]model.Link, error)
	ListPage(ctx context.Context, ownerID int64, page, size int) (*LinkPage, error)
	Get(ctx context.Context, id, ownerID int64) (*model.Link, error)
	GetByOriginalURL(ctx context.Context, ownerID int64, originalURL string) (*model.Link, error)
	Rename(ctx context.Context, id, ownerID int64, title string) (*model.Link, error)
	Delete(ctx context.Context, id, ownerID int64) error
	Stats(ctx context.Context, id, ownerID int64, refresh bool) (*model.Link, *model.StatsSnapshot, error)
}

// StatsProvider fetches click statistics by provider key.
type StatsProvider interface {
	GetStats(ctx context.Context, key string) (*model.StatsSnapshot, error)
}

// StatsCache keeps recent snapshots keyed by provider key.
type StatsCache interface {
	Get(ctx context.Context, key string) (*model.StatsSnapshot, bool)
	Set(ctx context.Context, key string, snap *model.StatsSnapshot)
	Delete(ctx context.Context, key string)
}

// EventSink receives an audit event for every link mutation.
type EventSink interface {
	Publish(ctx context.Context, event model.LinkEvent) error
}

// LinkServiceDeps wires the service. Stats, Cache and Events are optional.
type LinkServiceDeps struct {
	Repo   repository.LinkRepository
	Stats  StatsProvider
	Cache  StatsCache
	Events EventSink
	Logger *zap.Logger
}

// ErrStatsUnavailable is returned by Stats when no provider is configured.
var ErrStatsUnavailable = errors.New("statistics are not available")

type linkService struct {
	repo   repository.LinkRepository
	stats  StatsProvider
	cache  StatsCache
	events EventSink
	logger *zap.Logger
	now    func() time.Time
}

// NewLinkService returns a service implementation backed by the given repository.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		repo:   deps.Repo,
		stats:  deps.Stats,
		cache:  deps.Cache,
		events: deps.Events,
		logger: logger,
		now:    time.Now,
	}
}

// CreateLinkInput captures data required to store a freshly shortened link.
type CreateLinkInput struct {
	OwnerID     int64
	OriginalURL string
	ShortURL    string
	Title       string
}

// LinkPage is one page of an owner's links, most recent first. Page is zero-based.
type LinkPage struct {
	Links      []model.Link
	Page       int
	Size       int
	TotalPages int
	Total      int64
}

// ProviderKey returns the last path segment of a short URL.
func ProviderKey(shortURL string) string {
	path := shortURL
	if u, err := url.Parse(shortURL); err == nil && u.Host != "" {
		path = u.Path
	}
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

func (s *linkService) IsDuplicate(ctx context.Context, ownerID int64, originalURL string) (bool, error) {
	dup, err := s.repo.IsDuplicate(ctx, ownerID, originalURL)
	if err != nil {
		return false, fmt.Errorf("check duplicate: %w", err)
	}
	return dup, nil
}

func (s *linkService) Create(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	link := &model.Link{
		OwnerID:     input.OwnerID,
		OriginalURL: input.OriginalURL,
		ShortURL:    input.ShortURL,
		Title:       input.Title,
		ProviderKey: ProviderKey(input.ShortURL),
	}
	if link.Title == "" {
		link.Title = model.DefaultTitle
	}

	if err := s.repo.Save(ctx, link); err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.publish(ctx, model.LinkCreated, link)
	return link, nil
}

func (s *linkService) List(ctx context.Context, ownerID int64) ([]model.Link, error) {
	links, err := s.repo.ListByOwner(ctx, ownerID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) ListPage(ctx context.Context, ownerID int64, page, size int) (*LinkPage, error) {
	if size <= 0 {
		size = 5
	}

	total, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count links: %w", err)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	if page >= totalPages {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}

	result := &LinkPage{Page: page, Size: size, TotalPages: totalPages, Total: total}
	if total == 0 {
		return result, nil
	}

	links, err := s.repo.ListByOwner(ctx, ownerID, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	result.Links = links
	return result, nil
}

func (s *linkService) Get(ctx context.Context, id, ownerID int64) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) GetByOriginalURL(ctx context.Context, ownerID int64, originalURL string) (*model.Link, error) {
	link, err := s.repo.GetByOriginalURL(ctx, ownerID, originalURL)
	if err != nil {
		return nil, fmt.Errorf("get link by url: %w", err)
	}
	return link, nil
}

func (s *linkService) Rename(ctx context.Context, id, ownerID int64, title string) (*model.Link, error) {
	if err := s.repo.Rename(ctx, id, ownerID, title); err != nil {
		return nil, fmt.Errorf("rename link: %w", err)
	}

	link, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load renamed link: %w", err)
	}

	s.publish(ctx, model.LinkRenamed, link)
	return link, nil
}

func (s *linkService) Delete(ctx context.Context, id, ownerID int64) error {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("load link: %w", err)
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	if s.cache != nil && link.ProviderKey != "" {
		s.cache.Delete(ctx, link.ProviderKey)
	}
	s.publish(ctx, model.LinkDeleted, link)
	return nil
}

func (s *linkService) Stats(ctx context.Context, id, ownerID int64, refresh bool) (*model.Link, *model.StatsSnapshot, error) {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("get link: %w", err)
	}
	if s.stats == nil {
		return link, nil, ErrStatsUnavailable
	}

	if !refresh && s.cache != nil {
		if snap, ok := s.cache.Get(ctx, link.ProviderKey); ok {
			return link, snap, nil
		}
	}

	snap, err := s.stats.GetStats(ctx, link.ProviderKey)
	if err != nil {
		return link, nil, fmt.Errorf("get stats: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, link.ProviderKey, snap)
	}
	return link, snap, nil
}

func (s *linkService) publish(ctx context.Context, typ model.LinkEventType, link *model.Link) {
	if s.events == nil {
		return
	}

	event := model.LinkEvent{
		Type:        typ,
		LinkID:      link.ID,
		OwnerID:     link.OwnerID,
		OriginalURL: link.OriginalURL,
		ShortURL:    link.ShortURL,
		Title:       link.Title,
		Timestamp:   s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish link event",
			zap.String("type", string(typ)),
			zap.Int64("link_id", link.ID),
			zap.Error(err),
		)
	}
}
