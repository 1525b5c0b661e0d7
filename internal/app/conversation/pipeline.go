package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sifan077/linkbot/internal/app/model"
	"github.com/sifan077/linkbot/internal/app/repository"
	"github.com/sifan077/linkbot/internal/app/service"
	"github.com/sifan077/linkbot/internal/infra/prometheus"
	"go.uber.org/zap"
)

const defaultMaxBatchSize = 50

// Item outcomes as counted in metrics.
const (
	outcomeSuccess       = "success"
	outcomeDuplicate     = "duplicate"
	outcomeInvalid       = "invalid"
	outcomeProviderError = "provider_error"
	outcomeStorageError  = "storage_error"
)

var (
	errAlreadyStored = errors.New("already in your links")
	errNotSaved      = errors.New("could not be saved, try again later")
)

// Shortener turns an absolute URL into a short one.
type Shortener interface {
	Shorten(ctx context.Context, originalURL string) (string, error)
}

// PipelineDeps wires a Pipeline.
type PipelineDeps struct {
	Sessions     *SessionStore
	Links        service.LinkService
	Shortener    Shortener
	MaxBatchSize int
	Logger       *zap.Logger

	// LinkView renders a link card; used after a rename and when a rename is cancelled.
	LinkView func(link *model.Link) Reply
}

// Pipeline drives the intake and rename conversations. Calls for one user
// must not overlap; calls for different users may run concurrently.
type Pipeline struct {
	sessions  *SessionStore
	links     service.LinkService
	shortener Shortener
	maxBatch  int
	logger    *zap.Logger
	linkView  func(link *model.Link) Reply
	now       func() time.Time
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBatch := deps.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatchSize
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessionStore()
	}
	linkView := deps.LinkView
	if linkView == nil {
		linkView = plainLinkView
	}
	return &Pipeline{
		sessions:  sessions,
		links:     deps.Links,
		shortener: deps.Shortener,
		maxBatch:  maxBatch,
		logger:    logger,
		linkView:  linkView,
		now:       time.Now,
	}
}

// Sessions exposes the store, for the reaper and for tests.
func (p *Pipeline) Sessions() *SessionStore {
	return p.sessions
}

// StartIntake discards any conversation in progress and asks for links.
func (p *Pipeline) StartIntake(ctx context.Context, userID int64, ui Interaction) error {
	st := &State{Step: AwaitingURLs, StartedAt: p.now()}
	p.sessions.Put(userID, st)

	ref, err := ui.Respond(ctx, Reply{Text: askURLsText(p.maxBatch), Keyboard: cancelKeyboard()})
	if err != nil {
		return fmt.Errorf("send link prompt: %w", err)
	}
	st.Anchor = ref
	return nil
}

// HandleText feeds user text into the active conversation. handled is false
// when the user has no conversation in progress.
func (p *Pipeline) HandleText(ctx context.Context, userID int64, text string, ui Interaction) (handled bool, err error) {
	st := p.sessions.Get(userID)
	if st == nil {
		return false, nil
	}
	p.sessions.Touch(userID)

	switch st.Step {
	case AwaitingURLs:
		return true, p.submitURLs(ctx, userID, st, text, ui)
	case AwaitingSingleTitle, AwaitingBatchTitle:
		return true, p.submitTitle(ctx, userID, st, text, ui)
	case AwaitingRenameTitle:
		return true, p.submitRename(ctx, userID, st, text, ui)
	default:
		return false, nil
	}
}

// Skip stores the current item with the placeholder title. handled is false
// when no title is being asked for.
func (p *Pipeline) Skip(ctx context.Context, userID int64, ui Interaction) (handled bool, err error) {
	st := p.sessions.Get(userID)
	if st == nil || (st.Step != AwaitingSingleTitle && st.Step != AwaitingBatchTitle) {
		return false, nil
	}
	p.sessions.Touch(userID)
	return true, p.submitTitle(ctx, userID, st, "", ui)
}

// Cancel discards the user's conversation and returns the discarded state,
// or nil when there was nothing to cancel. Links stored before the cancel
// stay stored.
func (p *Pipeline) Cancel(ctx context.Context, userID int64, ui Interaction) (*State, error) {
	st := p.sessions.Get(userID)
	if st == nil || !p.sessions.Clear(userID) {
		return nil, nil
	}

	p.logger.Info("conversation cancelled",
		zap.Int64("user_id", userID),
		zap.Stringer("step", st.Step),
		zap.Int("saved", len(st.Successes)),
	)

	if st.Step == AwaitingRenameTitle {
		link, err := p.links.Get(ctx, st.LinkID, userID)
		if err == nil {
			return st, p.finish(ctx, st, ui, p.linkView(link))
		}
	}
	return st, p.finish(ctx, st, ui, Reply{Text: cancelledText(st), Keyboard: MenuKeyboard()})
}

func (p *Pipeline) submitURLs(ctx context.Context, userID int64, st *State, text string, ui Interaction) error {
	batch, err := ParseBatch(text, p.maxBatch)
	if err != nil {
		p.sessions.Clear(userID)
		p.logger.Info("batch rejected", zap.Int64("user_id", userID), zap.Error(err))
		return p.finish(ctx, st, ui, Reply{Text: rejectionText(err, batch), Keyboard: MenuKeyboard()})
	}

	st.Batch = batch.Lines > 1
	st.Total = len(batch.Items)
	st.Pending = batch.Items
	for _, f := range batch.Invalid {
		p.logger.Warn("batch line rejected",
			zap.Int64("user_id", userID),
			zap.String("url", f.Input),
			zap.String("reason", f.Reason),
		)
		prometheus.IntakeItemsTotal.WithLabelValues(outcomeInvalid).Inc()
	}
	st.Failures = append(st.Failures, batch.Invalid...)

	return p.advance(ctx, userID, st, ui)
}

func (p *Pipeline) submitTitle(ctx context.Context, userID int64, st *State, text string, ui Interaction) error {
	if st.Current == nil {
		return p.advance(ctx, userID, st, ui)
	}

	item := *st.Current
	st.Current = nil
	item.Title = strings.TrimSpace(text)

	if !p.process(ctx, userID, st, item) {
		return nil
	}
	return p.advance(ctx, userID, st, ui)
}

// advance processes captioned items straight away and stops at the first item
// that needs a title. With the queue empty it reports the result and ends the
// conversation.
func (p *Pipeline) advance(ctx context.Context, userID int64, st *State, ui Interaction) error {
	for len(st.Pending) > 0 {
		item := st.Pending[0]
		st.Pending = st.Pending[1:]

		if item.HasTitle {
			if st.Batch {
				p.show(ctx, st, ui, Reply{Text: progressText(st, item), Keyboard: cancelKeyboard()})
			}
			if !p.process(ctx, userID, st, item) {
				return nil
			}
			continue
		}

		st.Current = &item
		st.Step = AwaitingSingleTitle
		if st.Batch {
			st.Step = AwaitingBatchTitle
		}
		p.show(ctx, st, ui, Reply{Text: titlePromptText(st, item), Keyboard: titleKeyboard()})
		return nil
	}

	p.sessions.Clear(userID)
	st.Step = Idle

	text := summaryText(st)
	if !st.Batch {
		text = singleResultText(st)
	}
	return p.finishLong(ctx, st, ui, text)
}

// process runs one item: title check, duplicate check, shorten, save. Every
// failure is recorded on the state. It returns false when the conversation
// ended while the provider call was in flight; the result is then dropped.
func (p *Pipeline) process(ctx context.Context, userID int64, st *State, item Item) bool {
	if utf8.RuneCountInString(item.Title) > model.MaxTitleLength {
		p.fail(userID, st, item, outcomeInvalid, ErrTitleTooLong)
		return true
	}
	title := item.Title
	if title == "" {
		title = model.DefaultTitle
	}
	target := NormalizeURL(item.URL)

	dup, err := p.links.IsDuplicate(ctx, userID, target)
	if err != nil {
		p.logger.Error("duplicate check failed", zap.Int64("user_id", userID), zap.Error(err))
		p.fail(userID, st, item, outcomeStorageError, errNotSaved)
		return true
	}
	if dup {
		p.fail(userID, st, item, outcomeDuplicate, errAlreadyStored)
		return true
	}

	shortURL, err := p.shortener.Shorten(ctx, target)
	if err != nil {
		p.logger.Error("shorten failed",
			zap.Int64("user_id", userID),
			zap.String("url", target),
			zap.Error(err),
		)
		p.fail(userID, st, item, outcomeProviderError, err)
		return true
	}

	if p.sessions.Get(userID) != st {
		p.logger.Info("conversation ended during shortening, result dropped",
			zap.Int64("user_id", userID),
			zap.String("url", target),
		)
		return false
	}

	link, err := p.links.Create(ctx, service.CreateLinkInput{
		OwnerID:     userID,
		OriginalURL: target,
		ShortURL:    shortURL,
		Title:       title,
	})
	switch {
	case errors.Is(err, repository.ErrDuplicateLink):
		p.fail(userID, st, item, outcomeDuplicate, errAlreadyStored)
		return true
	case err != nil:
		p.logger.Error("save link failed", zap.Int64("user_id", userID), zap.Error(err))
		p.fail(userID, st, item, outcomeStorageError, errNotSaved)
		return true
	}

	st.Successes = append(st.Successes, Success{
		Title:       link.Title,
		ShortURL:    link.ShortURL,
		OriginalURL: link.OriginalURL,
	})
	prometheus.IntakeItemsTotal.WithLabelValues(outcomeSuccess).Inc()
	p.logger.Info("link added",
		zap.Int64("user_id", userID),
		zap.Int64("link_id", link.ID),
		zap.String("short_url", link.ShortURL),
	)
	return true
}

func (p *Pipeline) fail(userID int64, st *State, item Item, outcome string, reason error) {
	st.Failures = append(st.Failures, Failure{Input: item.Input, Reason: reason.Error()})
	prometheus.IntakeItemsTotal.WithLabelValues(outcome).Inc()
	p.logger.Warn("batch item failed",
		zap.Int64("user_id", userID),
		zap.String("url", item.Input),
		zap.String("reason", reason.Error()),
	)
}

// show puts r on the anchor message, sending a new anchor when the edit fails.
func (p *Pipeline) show(ctx context.Context, st *State, ui Interaction, r Reply) {
	if !st.Anchor.IsZero() {
		if err := ui.Edit(ctx, st.Anchor, r); err == nil {
			return
		}
	}
	ref, err := ui.Respond(ctx, r)
	if err != nil {
		p.logger.Warn("failed to send prompt", zap.Error(err))
		return
	}
	st.Anchor = ref
}

// finish delivers a terminal message. Unlike show it reports delivery failure,
// since the user would otherwise never learn the outcome.
func (p *Pipeline) finish(ctx context.Context, st *State, ui Interaction, r Reply) error {
	if !st.Anchor.IsZero() {
		if err := ui.Edit(ctx, st.Anchor, r); err == nil {
			return nil
		}
	}
	if _, err := ui.Respond(ctx, r); err != nil {
		return fmt.Errorf("send result: %w", err)
	}
	return nil
}

// finishLong delivers a terminal text that may exceed one message. The first
// part replaces the anchor, the rest follow as new messages and the menu is
// attached to the last one.
func (p *Pipeline) finishLong(ctx context.Context, st *State, ui Interaction, text string) error {
	parts := splitText(text, MaxMessageLength)
	for i, part := range parts {
		r := Reply{Text: part}
		if i == len(parts)-1 {
			r.Keyboard = MenuKeyboard()
		}
		if i == 0 {
			if err := p.finish(ctx, st, ui, r); err != nil {
				return err
			}
			continue
		}
		if _, err := ui.Respond(ctx, r); err != nil {
			return fmt.Errorf("send result part %d of %d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func plainLinkView(link *model.Link) Reply {
	return Reply{
		Text:     fmt.Sprintf("%s\n%s\n%s", link.DisplayTitle(), link.ShortURL, link.OriginalURL),
		Keyboard: MenuKeyboard(),
	}
}
