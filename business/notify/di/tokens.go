// Package di contains dependency injection tokens for the notify context.
package di

import (
	"github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Notifier = di.NewToken[*app.Notifier]("notify.Notifier")
)

// GetNotifier resolves the notifier.
func GetNotifier(c di.ServiceRegistry) *app.Notifier {
	return di.GetToken(c, Notifier)
}
