package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sifan077/linkbot/internal/app/conversation"
	"go.uber.org/zap"
)

// maxMessageLength is Telegram's limit for message text, in characters.
const maxMessageLength = conversation.MaxMessageLength

// Sender is the part of *tgbotapi.BotAPI the adapters use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ChatUI answers typed messages in a chat.
type ChatUI struct {
	sender Sender
	chatID int64
	logger *zap.Logger
}

// NewChatUI creates the message adapter for one chat.
func NewChatUI(sender Sender, chatID int64, logger *zap.Logger) *ChatUI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatUI{sender: sender, chatID: chatID, logger: logger}
}

func (u *ChatUI) Respond(_ context.Context, r conversation.Reply) (conversation.MessageRef, error) {
	msg := tgbotapi.NewMessage(u.chatID, clip(r.Text))
	msg.DisableWebPagePreview = true
	if len(r.Keyboard) > 0 {
		msg.ReplyMarkup = keyboard(r.Keyboard)
	}

	sent, err := u.sender.Send(msg)
	if err != nil {
		return conversation.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return conversation.MessageRef{ChatID: u.chatID, MessageID: sent.MessageID}, nil
}

func (u *ChatUI) Edit(_ context.Context, ref conversation.MessageRef, r conversation.Reply) error {
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, clip(r.Text))
	edit.DisableWebPagePreview = true
	if len(r.Keyboard) > 0 {
		markup := keyboard(r.Keyboard)
		edit.ReplyMarkup = &markup
	}

	if _, err := u.sender.Request(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

func (u *ChatUI) Delete(_ context.Context, ref conversation.MessageRef) error {
	if ref.IsZero() {
		return nil
	}
	if _, err := u.sender.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		u.logger.Debug("delete message failed", zap.Int("message_id", ref.MessageID), zap.Error(err))
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// Notice sends a plain message; typed input has no toast to show.
func (u *ChatUI) Notice(ctx context.Context, text string) error {
	_, err := u.Respond(ctx, conversation.Reply{Text: text})
	return err
}

// CallbackUI answers button presses. The callback query is answered exactly
// once: by the first Notice, or empty by Finish.
type CallbackUI struct {
	*ChatUI
	queryID string

	mu       sync.Mutex
	answered bool
}

// NewCallbackUI creates the button adapter for one callback query.
func NewCallbackUI(sender Sender, chatID int64, queryID string, logger *zap.Logger) *CallbackUI {
	return &CallbackUI{ChatUI: NewChatUI(sender, chatID, logger), queryID: queryID}
}

// Notice shows text as a toast over the chat.
func (u *CallbackUI) Notice(ctx context.Context, text string) error {
	if !u.markAnswered() {
		return u.ChatUI.Notice(ctx, text)
	}
	if _, err := u.sender.Request(tgbotapi.NewCallback(u.queryID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// Finish stops the button's loading indicator if nothing answered it yet.
func (u *CallbackUI) Finish(context.Context) {
	if !u.markAnswered() {
		return
	}
	if _, err := u.sender.Request(tgbotapi.NewCallback(u.queryID, "")); err != nil {
		u.logger.Debug("answer callback failed", zap.Error(err))
	}
}

func (u *CallbackUI) markAnswered() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.answered {
		return false
	}
	u.answered = true
	return true
}

func keyboard(rows [][]conversation.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func clip(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageLength {
		return text
	}
	r := []rune(text)
	return string(r[:maxMessageLength-1]) + "…"
}
