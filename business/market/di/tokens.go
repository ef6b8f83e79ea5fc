// Package di contains dependency injection tokens for the market context.
package di

import (
	"github.com/cryptoking82/evm-arbitrage-bot/business/market/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Registry = di.NewToken[app.Registry]("market.Registry")
)

// GetRegistry resolves the market registry.
func GetRegistry(c di.ServiceRegistry) app.Registry {
	return di.GetToken(c, Registry)
}
