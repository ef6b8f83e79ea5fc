// Package execution implements the execution bounded context: the
// coordinator, the settlement tracker, and the contract protocol client.
package execution

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/app"
	executionDI "github.com/cryptoking82/evm-arbitrage-bot/business/execution/di"
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/infra/cooldown"
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/infra/evm"
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/infra/memstore"
	execPostgres "github.com/cryptoking82/evm-arbitrage-bot/business/execution/infra/postgres"
	marketDI "github.com/cryptoking82/evm-arbitrage-bot/business/market/di"
	notifyDI "github.com/cryptoking82/evm-arbitrage-bot/business/notify/di"
	opportunityDI "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/di"
	pricingDI "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/monolith"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/postgres"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Cooldowns, func(sr di.ServiceRegistry) app.Cooldowns {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Redis.Enabled {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			return cooldown.NewRedis(client)
		}
		return cooldown.NewMemory()
	})

	di.RegisterToken(c, executionDI.TxStore, func(sr di.ServiceRegistry) app.TxStore {
		cfg := sr.Get("config").(*config.Config)

		if cfg.Storage.Driver == "postgres" {
			client := sr.Get("postgres").(*postgres.Client)
			return execPostgres.NewTxStore(client.Pool())
		}
		return memstore.NewTxStore()
	})

	di.RegisterToken(c, executionDI.ContractClient, func(sr di.ServiceRegistry) app.ContractClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		clients := sr.Get("ethClients").(func(string) *ethclient.Client)

		contract, err := evm.NewContract(cfg.Networks, cfg.Execution.ExecutorPrivateKey, evm.ClientProvider(clients), log)
		if err != nil {
			panic("failed to create contract client: " + err.Error())
		}
		return contract
	})

	di.RegisterToken(c, executionDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		client := executionDI.GetContractClient(sr)
		var from common.Address
		if impl, ok := client.(*evm.Contract); ok {
			from = impl.ExecutorAddress()
		}

		contracts := make(map[string]common.Address, len(cfg.Networks))
		for _, n := range cfg.Networks {
			contracts[n.Name] = n.ContractAddressHex()
		}

		coord, err := app.NewCoordinator(app.CoordinatorDeps{
			Config:          cfg.Execution,
			Detection:       cfg.Detection,
			Registry:        marketDI.GetRegistry(sr),
			Pricing:         pricingDI.GetPricingService(sr),
			Store:           opportunityDI.GetStore(sr),
			TxStore:         executionDI.GetTxStore(sr),
			Contract:        client,
			Cooldowns:       executionDI.GetCooldowns(sr),
			Notifier:        notifyDI.GetNotifier(sr),
			Logger:          log,
			ExecutorAddress: from,
			Contracts:       contracts,
		})
		if err != nil {
			panic("failed to create coordinator: " + err.Error())
		}
		return coord
	})

	di.RegisterToken(c, executionDI.Settlement, func(sr di.ServiceRegistry) *app.Settlement {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		settle, err := app.NewSettlement(app.SettlementDeps{
			Config:    cfg.Execution,
			TxStore:   executionDI.GetTxStore(sr),
			Contract:  executionDI.GetContractClient(sr),
			Store:     opportunityDI.GetStore(sr),
			Registry:  marketDI.GetRegistry(sr),
			Cooldowns: executionDI.GetCooldowns(sr),
			Notifier:  notifyDI.GetNotifier(sr),
			Logger:    log,
		})
		if err != nil {
			panic("failed to create settlement tracker: " + err.Error())
		}
		return settle
	})

	return nil
}

// Startup launches the coordinator and settlement workers in the background.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	coord := executionDI.GetCoordinator(mono.Services())
	settle := executionDI.GetSettlement(mono.Services())
	log := mono.Logger()

	go func() {
		if err := coord.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(ctx, "coordinator stopped unexpectedly", "error", err)
		}
	}()
	go func() {
		if err := settle.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(ctx, "settlement tracker stopped unexpectedly", "error", err)
		}
	}()

	log.Info(ctx, "execution module started",
		"workers", mono.Config().Execution.Workers,
		"dry_run", mono.Config().Execution.DryRun,
	)
	return nil
}
