package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sifan077/linkbot/internal/app/bot"
	"github.com/sifan077/linkbot/internal/app/conversation"
	"go.uber.org/zap"
)

// Convert turns a Telegram update into a bot job answered through sender.
// ok is false for updates the bot does not react to.
func Convert(u tgbotapi.Update, sender Sender, logger *zap.Logger) (bot.Job, bool) {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		q := u.CallbackQuery
		upd := bot.Update{UserID: q.From.ID, ChatID: q.From.ID, Data: q.Data}
		if q.Message != nil && q.Message.Chat != nil {
			upd.ChatID = q.Message.Chat.ID
			upd.Message = conversation.MessageRef{ChatID: q.Message.Chat.ID, MessageID: q.Message.MessageID}
		}
		if upd.Data == "" {
			upd.Data = conversation.ActionNoop
		}
		return bot.Job{Update: upd, UI: NewCallbackUI(sender, upd.ChatID, q.ID, logger)}, true

	case u.Message != nil && u.Message.From != nil && u.Message.Chat != nil:
		m := u.Message
		if m.Text == "" || !m.Chat.IsPrivate() {
			return bot.Job{}, false
		}
		upd := bot.Update{
			UserID:  m.From.ID,
			ChatID:  m.Chat.ID,
			Text:    m.Text,
			Message: conversation.MessageRef{ChatID: m.Chat.ID, MessageID: m.MessageID},
		}
		return bot.Job{Update: upd, UI: NewChatUI(sender, m.Chat.ID, logger)}, true
	}
	return bot.Job{}, false
}

// Handler wraps next so every button press gets its callback answered.
func Handler(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, upd bot.Update, ui conversation.Interaction) error {
		err := next(ctx, upd, ui)
		if cb, ok := ui.(*CallbackUI); ok {
			cb.Finish(ctx)
		}
		return err
	}
}
