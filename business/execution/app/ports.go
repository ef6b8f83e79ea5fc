// Package app contains the execution coordinator, the settlement tracker,
// and their ports.
package app

import (
	"context"
	"time"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
)

// TxStore persists transaction records. In-flight submissions are durably
// recorded as Pending before the submit call returns control, so a crash
// mid-wait is recoverable by resuming tracking on restart.
type TxStore interface {
	// Create persists a new transaction record. Fails with
	// DUPLICATE_TRANSACTION when (network, hash) already exists.
	Create(ctx context.Context, tx *domain.Transaction) error

	// Get returns a snapshot by id.
	Get(ctx context.Context, id string) (*domain.Transaction, error)

	// Update applies settlement results to a Pending transaction. Terminal
	// records are never mutated; updating one fails with INVALID_STATE.
	Update(ctx context.Context, tx *domain.Transaction) error

	// ListPending returns all transactions still awaiting confirmation,
	// oldest first.
	ListPending(ctx context.Context) ([]*domain.Transaction, error)
}

// ContractClient is the ABI surface of the deployed execution contract.
type ContractClient interface {
	// Simulate performs the read-only dry run, returning the projected
	// profit in raw tokenA units and whether the call would succeed.
	Simulate(ctx context.Context, network string, params domain.ExecutionParams) (*domain.SimulationResult, error)

	// Preflight gathers the on-chain snapshot the plan guards run
	// against: executor authorization, token blacklist flags, the
	// contract's tokenA balance, and the current gas price.
	Preflight(ctx context.Context, network string, params domain.ExecutionParams) (*domain.PlanContext, error)

	// Execute signs and submits executeArbitrage, returning the
	// transaction hash. onSigned runs after signing but before broadcast
	// with the definitive hash, so the caller can durably record the
	// Pending transaction first; an onSigned error aborts the broadcast.
	// The deadline embedded in params guarantees a submission sitting
	// unconfirmed past it reverts rather than executing against stale
	// market conditions.
	Execute(ctx context.Context, network string, params domain.ExecutionParams, onSigned func(hash string) error) (string, error)

	// Config returns the contract's current risk parameter snapshot.
	Config(ctx context.Context, network string) (*domain.ContractConfig, error)

	// Receipt fetches the settlement outcome for a submitted hash. Returns
	// RECEIPT_NOT_FOUND while the transaction is still unconfirmed.
	Receipt(ctx context.Context, network, hash string) (*domain.ExecutionResult, error)
}

// Cooldowns tracks detection keys that recently failed. A key in cool-down
// is skipped by the detector until the window lapses.
type Cooldowns interface {
	// Set opens a cool-down window for the key.
	Set(ctx context.Context, key string, ttl time.Duration) error

	// Active reports whether the key is inside its window.
	Active(ctx context.Context, key string) (bool, error)
}
