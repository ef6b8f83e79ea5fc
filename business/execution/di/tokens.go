// Package di contains dependency injection tokens for the execution context.
package di

import (
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Cooldowns      = di.NewToken[app.Cooldowns]("execution.Cooldowns")
	TxStore        = di.NewToken[app.TxStore]("execution.TxStore")
	ContractClient = di.NewToken[app.ContractClient]("execution.ContractClient")
	Coordinator    = di.NewToken[*app.Coordinator]("execution.Coordinator")
	Settlement     = di.NewToken[*app.Settlement]("execution.Settlement")
)

// Helper functions for type-safe access
func GetCooldowns(c di.ServiceRegistry) app.Cooldowns {
	return di.GetToken(c, Cooldowns)
}

func GetTxStore(c di.ServiceRegistry) app.TxStore {
	return di.GetToken(c, TxStore)
}

func GetContractClient(c di.ServiceRegistry) app.ContractClient {
	return di.GetToken(c, ContractClient)
}

func GetCoordinator(c di.ServiceRegistry) *app.Coordinator {
	return di.GetToken(c, Coordinator)
}

func GetSettlement(c di.ServiceRegistry) *app.Settlement {
	return di.GetToken(c, Settlement)
}
