package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sifan077/linkbot/internal/app/conversation"
	"github.com/sifan077/linkbot/internal/app/repository"
	"github.com/sifan077/linkbot/internal/app/service"
	"github.com/sifan077/linkbot/internal/infra/prometheus"
	"go.uber.org/zap"
)

const defaultPageSize = 5

// Update kinds as counted in metrics.
const (
	kindMessage  = "message"
	kindCallback = "callback"
)

// Update is one user input, either typed text or a pressed button.
type Update struct {
	UserID int64
	ChatID int64

	// Text is set for messages, Data for button presses.
	Text string
	Data string

	// Message is the user's message, or the bot message whose button was pressed.
	Message conversation.MessageRef
}

// IsCallback reports whether the update is a button press.
func (u Update) IsCallback() bool {
	return u.Data != ""
}

// Limiter decides whether a user may send another update.
type Limiter interface {
	Allow(ctx context.Context, userID int64) bool
}

// RouterDeps wires a Router. Limiter is optional.
type RouterDeps struct {
	Pipeline *conversation.Pipeline
	Links    service.LinkService
	Limiter  Limiter
	PageSize int
	Logger   *zap.Logger
}

// Router maps commands and button actions onto the conversation pipeline and
// the link service. It is safe for concurrent use across users.
type Router struct {
	pipeline *conversation.Pipeline
	links    service.LinkService
	limiter  Limiter
	pageSize int
	logger   *zap.Logger
}

func NewRouter(deps RouterDeps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := deps.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Router{
		pipeline: deps.Pipeline,
		links:    deps.Links,
		limiter:  deps.Limiter,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Handle processes one update. Errors are transport failures; user-facing
// failures are answered through ui and yield nil.
func (r *Router) Handle(ctx context.Context, upd Update, ui conversation.Interaction) error {
	kind := kindMessage
	if upd.IsCallback() {
		kind = kindCallback
	}

	if r.limiter != nil && !r.limiter.Allow(ctx, upd.UserID) {
		prometheus.UpdatesTotal.WithLabelValues(kind, "throttled").Inc()
		return ui.Notice(ctx, "Too many requests, slow down a little.")
	}

	var err error
	if upd.IsCallback() {
		err = r.handleAction(ctx, upd, ui)
	} else {
		err = r.handleMessage(ctx, upd, ui)
	}

	result := "ok"
	if err != nil {
		result = "error"
		r.logger.Error("update handling failed",
			zap.Int64("user_id", upd.UserID),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}
	prometheus.UpdatesTotal.WithLabelValues(kind, result).Inc()
	return err
}

func (r *Router) handleMessage(ctx context.Context, upd Update, ui conversation.Interaction) error {
	text := strings.TrimSpace(upd.Text)
	if cmd, ok := parseCommand(text); ok {
		return r.handleCommand(ctx, upd, cmd, ui)
	}

	if r.pipeline.Sessions().Get(upd.UserID) != nil {
		// The prompt is edited in place; the typed input would only clutter the chat.
		_ = ui.Delete(ctx, upd.Message)
	}

	handled, err := r.pipeline.HandleText(ctx, upd.UserID, upd.Text, ui)
	if err != nil {
		return err
	}
	if !handled {
		return r.respond(ctx, ui, textView("Choose an action from the menu, or send /help."))
	}
	return nil
}

// parseCommand returns the command name without the slash and any @botname suffix.
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	cmd, _, _ := strings.Cut(text[1:], " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), cmd != ""
}

func (r *Router) handleCommand(ctx context.Context, upd Update, cmd string, ui conversation.Interaction) error {
	switch cmd {
	case "start", "menu":
		r.pipeline.Sessions().Clear(upd.UserID)
		return r.respond(ctx, ui, welcomeView())
	case "shorten":
		return r.pipeline.StartIntake(ctx, upd.UserID, ui)
	case "links":
		return r.showList(ctx, upd, 0, ui)
	case "cancel":
		st, err := r.pipeline.Cancel(ctx, upd.UserID, ui)
		if err != nil || st != nil {
			return err
		}
		return r.respond(ctx, ui, textView("Nothing to cancel."))
	case "skip":
		handled, err := r.pipeline.Skip(ctx, upd.UserID, ui)
		if err != nil || handled {
			return err
		}
		return r.respond(ctx, ui, textView("Nothing to skip."))
	default:
		return r.respond(ctx, ui, helpView())
	}
}

func (r *Router) handleAction(ctx context.Context, upd Update, ui conversation.Interaction) error {
	action, id, hasArg := conversation.ParseAction(upd.Data)

	switch action {
	case conversation.ActionNoop:
		return nil
	case conversation.ActionMenu:
		r.pipeline.Sessions().Clear(upd.UserID)
		return r.present(ctx, upd, ui, welcomeView())
	case conversation.ActionShorten:
		return r.pipeline.StartIntake(ctx, upd.UserID, ui)
	case conversation.ActionCancel:
		st, err := r.pipeline.Cancel(ctx, upd.UserID, ui)
		if err != nil || st != nil {
			return err
		}
		return r.present(ctx, upd, ui, textView("Nothing to cancel."))
	case conversation.ActionSkip:
		handled, err := r.pipeline.Skip(ctx, upd.UserID, ui)
		if err != nil || handled {
			return err
		}
		return ui.Notice(ctx, "Nothing to skip.")
	case conversation.ActionLinks:
		return r.showList(ctx, upd, int(id), ui)
	}

	if !hasArg {
		return ui.Notice(ctx, "Unknown action.")
	}

	switch action {
	case conversation.ActionCard, conversation.ActionDeleteNo:
		return r.showCard(ctx, upd, id, ui)
	case conversation.ActionStats:
		return r.showStats(ctx, upd, id, false, ui)
	case conversation.ActionRefresh:
		return r.showStats(ctx, upd, id, true, ui)
	case conversation.ActionRename:
		return r.pipeline.StartRename(ctx, upd.UserID, id, upd.Message, ui)
	case conversation.ActionDelete:
		link, err := r.links.Get(ctx, id, upd.UserID)
		if err != nil {
			return r.linkError(ctx, upd, ui, err)
		}
		return r.present(ctx, upd, ui, deleteConfirmView(link))
	case conversation.ActionDeleteYes:
		return r.deleteLink(ctx, upd, id, ui)
	default:
		return ui.Notice(ctx, "Unknown action.")
	}
}

func (r *Router) showList(ctx context.Context, upd Update, page int, ui conversation.Interaction) error {
	result, err := r.links.ListPage(ctx, upd.UserID, page, r.pageSize)
	if err != nil {
		r.logger.Error("list links failed", zap.Int64("user_id", upd.UserID), zap.Error(err))
		return r.present(ctx, upd, ui, textView("Could not load your links, try again later."))
	}
	return r.present(ctx, upd, ui, ListView(result))
}

func (r *Router) showCard(ctx context.Context, upd Update, id int64, ui conversation.Interaction) error {
	link, err := r.links.Get(ctx, id, upd.UserID)
	if err != nil {
		return r.linkError(ctx, upd, ui, err)
	}
	return r.present(ctx, upd, ui, CardView(link))
}

func (r *Router) showStats(ctx context.Context, upd Update, id int64, refresh bool, ui conversation.Interaction) error {
	link, snap, err := r.links.Stats(ctx, id, upd.UserID, refresh)
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return r.linkError(ctx, upd, ui, err)
	case err != nil && link != nil:
		r.logger.Error("load stats failed",
			zap.Int64("user_id", upd.UserID),
			zap.Int64("link_id", id),
			zap.Error(err),
		)
		return r.present(ctx, upd, ui, statsErrorView(link, err))
	case err != nil:
		return r.linkError(ctx, upd, ui, err)
	}

	if refresh {
		_ = ui.Notice(ctx, "Statistics updated.")
	}
	return r.present(ctx, upd, ui, StatsView(link, snap))
}

func (r *Router) deleteLink(ctx context.Context, upd Update, id int64, ui conversation.Interaction) error {
	if err := r.links.Delete(ctx, id, upd.UserID); err != nil {
		return r.linkError(ctx, upd, ui, err)
	}
	r.logger.Info("link deleted", zap.Int64("user_id", upd.UserID), zap.Int64("link_id", id))

	_ = ui.Notice(ctx, "Link deleted.")
	return r.showList(ctx, upd, 0, ui)
}

// linkError answers a failed link lookup: missing links get a notice and the
// list, anything else a generic failure message.
func (r *Router) linkError(ctx context.Context, upd Update, ui conversation.Interaction, err error) error {
	if errors.Is(err, repository.ErrLinkNotFound) {
		_ = ui.Notice(ctx, "Link not found.")
		return r.showList(ctx, upd, 0, ui)
	}
	r.logger.Error("link operation failed", zap.Int64("user_id", upd.UserID), zap.Error(err))
	return r.present(ctx, upd, ui, textView("Something went wrong, try again later."))
}

// present edits the message carrying the pressed button, or sends a new
// message for typed input or when the edit fails.
func (r *Router) present(ctx context.Context, upd Update, ui conversation.Interaction, reply conversation.Reply) error {
	if upd.IsCallback() && !upd.Message.IsZero() {
		err := ui.Edit(ctx, upd.Message, reply)
		if err == nil {
			return nil
		}
		r.logger.Debug("edit failed, sending new message", zap.Error(err))
	}
	return r.respond(ctx, ui, reply)
}

func (r *Router) respond(ctx context.Context, ui conversation.Interaction, reply conversation.Reply) error {
	if _, err := ui.Respond(ctx, reply); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
