package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sifan077/linkbot/internal/app/bot"
	"go.uber.org/zap"
)

// UpdateSource is the long-polling part of *tgbotapi.BotAPI.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller receives updates by long polling and hands them to a dispatch func.
type Poller struct {
	source   UpdateSource
	sender   Sender
	timeout  int
	dispatch func(bot.Job) bool
	logger   *zap.Logger
}

func NewPoller(source UpdateSource, sender Sender, timeout int, dispatch func(bot.Job) bool, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		source:   source,
		sender:   sender,
		timeout:  timeout,
		dispatch: dispatch,
		logger:   logger,
	}
}

// Run polls until ctx is cancelled. A webhook left over from a previous
// deployment is removed first, Telegram refuses polling otherwise.
func (p *Poller) Run(ctx context.Context) error {
	if err := DeleteWebhook(p.sender); err != nil {
		return err
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.source.GetUpdatesChan(cfg)

	p.logger.Info("polling for updates", zap.Int("timeout", p.timeout))
	for {
		select {
		case <-ctx.Done():
			p.source.StopReceivingUpdates()
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			job, ok := Convert(u, p.sender, p.logger)
			if !ok {
				continue
			}
			if !p.dispatch(job) {
				p.logger.Warn("update dropped", zap.Int("update_id", u.UpdateID))
			}
		}
	}
}

// SetWebhook registers url as the bot's webhook.
func SetWebhook(sender Sender, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := sender.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes any registered webhook.
func DeleteWebhook(sender Sender) error {
	if _, err := sender.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
