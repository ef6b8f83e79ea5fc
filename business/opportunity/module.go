// Package opportunity implements the opportunity bounded context: the
// canonical lifecycle store and its state machine.
package opportunity

import (
	"context"

	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/app"
	opportunityDI "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/di"
	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/infra/memstore"
	oppPostgres "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/infra/postgres"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/monolith"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/postgres"
)

// Module implements the opportunity bounded context.
type Module struct{}

// RegisterServices registers the opportunity store with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, opportunityDI.Store, func(sr di.ServiceRegistry) app.Store {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Storage.Driver == "postgres" {
			client := sr.Get("postgres").(*postgres.Client)
			return oppPostgres.New(client.Pool())
		}
		return memstore.New()
	})

	return nil
}

// Startup initializes the opportunity module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	opportunityDI.GetStore(mono.Services())

	mono.Logger().Info(ctx, "opportunity module started",
		"store", mono.Config().Storage.Driver,
	)
	return nil
}
