// Package notify implements the notification bounded context.
package notify

import (
	"context"

	"github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	notifyDI "github.com/cryptoking82/evm-arbitrage-bot/business/notify/di"
	"github.com/cryptoking82/evm-arbitrage-bot/business/notify/infra/console"
	"github.com/cryptoking82/evm-arbitrage-bot/business/notify/infra/telegram"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/monolith"
)

// Module implements the notify bounded context.
type Module struct{}

// RegisterServices registers the notifier with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, notifyDI.Notifier, func(sr di.ServiceRegistry) *app.Notifier {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var senders []app.Sender
		if cfg.Notify.Console {
			senders = append(senders, console.New(log))
		}
		if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
			tg, err := telegram.New(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
			if err != nil {
				log.Error(context.Background(), "telegram sender unavailable", "error", err)
			} else {
				senders = append(senders, tg)
			}
		}

		return app.NewNotifier(senders, cfg.Notify.Events, log)
	})

	return nil
}

// Startup initializes the notify module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	notifier := notifyDI.GetNotifier(mono.Services())

	mono.Logger().Info(ctx, "notify module started", "senders", notifier.Senders())
	return nil
}
