package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sifan077/linkbot/internal/app/repository"
	"go.uber.org/zap"
)

// StartRename asks for a new title for one of the user's links, replacing
// any conversation in progress. anchor is the message to turn into the
// prompt, usually the link card; it may be zero.
func (p *Pipeline) StartRename(ctx context.Context, userID, linkID int64, anchor MessageRef, ui Interaction) error {
	link, err := p.links.Get(ctx, linkID, userID)
	if errors.Is(err, repository.ErrLinkNotFound) {
		_, err := ui.Respond(ctx, Reply{Text: "Link not found.", Keyboard: MenuKeyboard()})
		return err
	}
	if err != nil {
		return fmt.Errorf("load link for rename: %w", err)
	}

	st := &State{
		Step:      AwaitingRenameTitle,
		LinkID:    linkID,
		Anchor:    anchor,
		StartedAt: p.now(),
	}
	p.sessions.Put(userID, st)

	p.show(ctx, st, ui, Reply{Text: renamePromptText(link), Keyboard: cancelKeyboard()})
	return nil
}

func (p *Pipeline) submitRename(ctx context.Context, userID int64, st *State, text string, ui Interaction) error {
	title, err := ValidateTitle(text)
	if err != nil {
		p.show(ctx, st, ui, Reply{Text: renameInvalidText(err), Keyboard: cancelKeyboard()})
		return nil
	}

	p.sessions.Clear(userID)

	link, err := p.links.Rename(ctx, st.LinkID, userID, title)
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return p.finish(ctx, st, ui, Reply{Text: "This link no longer exists.", Keyboard: MenuKeyboard()})
	case err != nil:
		p.logger.Error("rename failed",
			zap.Int64("user_id", userID),
			zap.Int64("link_id", st.LinkID),
			zap.Error(err),
		)
		return p.finish(ctx, st, ui, Reply{Text: "Could not rename the link, try again later.", Keyboard: MenuKeyboard()})
	}

	p.logger.Info("link renamed", zap.Int64("user_id", userID), zap.Int64("link_id", link.ID))
	view := p.linkView(link)
	view.Text = "Title updated.\n\n" + view.Text
	return p.finish(ctx, st, ui, view)
}
