// Package di contains dependency injection tokens for the opportunity context.
package di

import (
	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Store = di.NewToken[app.Store]("opportunity.Store")
)

// GetStore resolves the opportunity store.
func GetStore(c di.ServiceRegistry) app.Store {
	return di.GetToken(c, Store)
}
