// Package market implements the market bounded context holding venue and
// token reference data.
package market

import (
	"context"

	"github.com/cryptoking82/evm-arbitrage-bot/business/market/app"
	marketDI "github.com/cryptoking82/evm-arbitrage-bot/business/market/di"
	"github.com/cryptoking82/evm-arbitrage-bot/business/market/infra/staticreg"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/monolith"
)

// Module implements the market bounded context.
type Module struct{}

// RegisterServices registers all market services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Registry (public - exposed to other modules)
	di.RegisterToken(c, marketDI.Registry, func(sr di.ServiceRegistry) app.Registry {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		reg, err := staticreg.New(cfg, log)
		if err != nil {
			panic("failed to build market registry: " + err.Error())
		}
		return reg
	})

	return nil
}

// Startup initializes the market module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	reg := marketDI.GetRegistry(mono.Services())

	mono.Logger().Info(ctx, "market module started",
		"routes", len(reg.Routes()),
	)
	return nil
}
