// Package evm implements the execution ports against the deployed arbitrage
// contract over JSON-RPC.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/circuitbreaker"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

const (
	tracerName = "execution-evm"
	meterName  = "execution-evm"

	// Fallback gas limit when estimation is unavailable for a call that
	// already passed simulation.
	defaultExecuteGas = 600000
)

// ClientProvider returns the RPC client for a network.
type ClientProvider func(network string) *ethclient.Client

// Ensure Contract implements the port.
var _ app.ContractClient = (*Contract)(nil)

// contractMetrics holds OTEL metric instruments.
type contractMetrics struct {
	simulationsTotal  metric.Int64Counter
	submissionsTotal  metric.Int64Counter
	submissionErrors  metric.Int64Counter
	receiptsFetched   metric.Int64Counter
}

// networkTarget is one deployed contract instance.
type networkTarget struct {
	address common.Address
	chainID *big.Int
}

// Contract talks to the deployed execution contract on each network.
type Contract struct {
	clients  ClientProvider
	targets  map[string]networkTarget
	abi      abi.ABI
	erc20ABI abi.ABI

	key  *ecdsa.PrivateKey
	from common.Address

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker[[]byte]

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *contractMetrics
}

// NewContract creates a contract client for all configured networks. The
// executor key may be empty in dry-run setups; Execute then fails with
// UNAUTHORIZED_EXECUTOR.
func NewContract(networks []config.NetworkConfig, executorKey string, clients ClientProvider, log logger.LoggerInterface) (*Contract, error) {
	parsedABI, err := abi.JSON(strings.NewReader(ArbitrageABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	erc20, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	c := &Contract{
		clients:  clients,
		targets:  make(map[string]networkTarget, len(networks)),
		abi:      parsedABI,
		erc20ABI: erc20,
		breakers: make(map[string]*circuitbreaker.CircuitBreaker[[]byte]),
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	for _, n := range networks {
		c.targets[n.Name] = networkTarget{
			address: n.ContractAddressHex(),
			chainID: new(big.Int).SetUint64(n.ChainID),
		}
	}

	if executorKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(executorKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse executor key: %w", err)
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return c, nil
}

func (c *Contract) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &contractMetrics{}

	c.metrics.simulationsTotal, err = meter.Int64Counter(
		"contract_simulations_total",
		metric.WithDescription("Total simulateArbitrage calls"),
	)
	if err != nil {
		return err
	}

	c.metrics.submissionsTotal, err = meter.Int64Counter(
		"contract_submissions_total",
		metric.WithDescription("Total executeArbitrage submissions"),
	)
	if err != nil {
		return err
	}

	c.metrics.submissionErrors, err = meter.Int64Counter(
		"contract_submission_errors_total",
		metric.WithDescription("Submissions rejected before broadcast"),
	)
	if err != nil {
		return err
	}

	c.metrics.receiptsFetched, err = meter.Int64Counter(
		"contract_receipts_total",
		metric.WithDescription("Receipts fetched for settlement"),
	)
	if err != nil {
		return err
	}

	return nil
}

// ExecutorAddress returns the signing address, zero when no key is loaded.
func (c *Contract) ExecutorAddress() common.Address {
	return c.from
}

func (c *Contract) target(network string) (networkTarget, error) {
	t, ok := c.targets[network]
	if !ok || t.address == (common.Address{}) {
		return networkTarget{}, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("no execution contract configured for network %s", network)))
	}
	return t, nil
}

func (c *Contract) breaker(network string) *circuitbreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.breakers[network]; ok {
		return b
	}
	b := circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("contract-" + network))
	c.breakers[network] = b
	return b
}

// call performs a read-only contract call through the network breaker.
func (c *Contract) call(ctx context.Context, network string, to common.Address, data []byte) ([]byte, error) {
	result, err := c.breaker(network).Execute(func() ([]byte, error) {
		return c.clients(network).CallContract(ctx, ethereum.CallMsg{
			To:   &to,
			Data: data,
		}, nil)
	})
	if err != nil {
		if apperror.IsCode(err, apperror.CodeCircuitOpen) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("contract call failed on %s", network)))
	}
	return result, nil
}

// Config reads the contract's risk parameter snapshot.
func (c *Contract) Config(ctx context.Context, network string) (*domain.ContractConfig, error) {
	ctx, span := c.tracer.Start(ctx, "contract.get_config",
		trace.WithAttributes(attribute.String("network", network)),
	)
	defer span.End()

	t, err := c.target(network)
	if err != nil {
		return nil, err
	}

	data, err := c.abi.Pack("getConfig")
	if err != nil {
		return nil, fmt.Errorf("failed to encode getConfig: %w", err)
	}

	raw, err := c.call(ctx, network, t.address, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return nil, err
	}

	outputs, err := c.abi.Unpack("getConfig", raw)
	if err != nil || len(outputs) < 6 {
		span.SetStatus(codes.Error, "decode failed")
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode getConfig output"))
	}

	cfg := &domain.ContractConfig{
		Paused:         outputs[0].(bool),
		MinProfitFloor: decimal.NewFromBigInt(outputs[1].(*big.Int), 0),
		FeePct:         decimal.NewFromBigInt(outputs[2].(*big.Int), 0).Div(decimal.NewFromInt(100)),
		FeeRecipient:   outputs[3].(common.Address),
		GasCeilingWei:  outputs[4].(*big.Int),
		MaxSlippageBps: decimal.NewFromBigInt(outputs[5].(*big.Int), 0),
		FetchedAt:      time.Now().UTC(),
	}

	span.SetAttributes(attribute.Bool("paused", cfg.Paused))
	span.SetStatus(codes.Ok, "fetched")
	return cfg, nil
}

// Preflight gathers the plan guard snapshot for one candidate execution.
func (c *Contract) Preflight(ctx context.Context, network string, params domain.ExecutionParams) (*domain.PlanContext, error) {
	ctx, span := c.tracer.Start(ctx, "contract.preflight",
		trace.WithAttributes(attribute.String("network", network)),
	)
	defer span.End()

	t, err := c.target(network)
	if err != nil {
		return nil, err
	}

	pctx := &domain.PlanContext{
		Blacklisted: make(map[common.Address]bool, 2),
	}

	// Executor authorization
	data, err := c.abi.Pack("authorizedExecutors", c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to encode authorizedExecutors: %w", err)
	}
	raw, err := c.call(ctx, network, t.address, data)
	if err != nil {
		return nil, err
	}
	outputs, err := c.abi.Unpack("authorizedExecutors", raw)
	if err != nil || len(outputs) < 1 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode authorizedExecutors output"))
	}
	pctx.ExecutorAuthorized = c.key != nil && outputs[0].(bool)

	// Token blacklist flags
	for _, token := range []common.Address{params.TokenA, params.TokenB} {
		data, err := c.abi.Pack("blacklistedTokens", token)
		if err != nil {
			return nil, fmt.Errorf("failed to encode blacklistedTokens: %w", err)
		}
		raw, err := c.call(ctx, network, t.address, data)
		if err != nil {
			return nil, err
		}
		outputs, err := c.abi.Unpack("blacklistedTokens", raw)
		if err != nil || len(outputs) < 1 {
			return nil, apperror.New(apperror.CodeContractCallFailed,
				apperror.WithCause(err),
				apperror.WithContext("failed to decode blacklistedTokens output"))
		}
		pctx.Blacklisted[token] = outputs[0].(bool)
	}

	// Contract tokenA balance
	data, err = c.erc20ABI.Pack("balanceOf", t.address)
	if err != nil {
		return nil, fmt.Errorf("failed to encode balanceOf: %w", err)
	}
	raw, err = c.call(ctx, network, params.TokenA, data)
	if err != nil {
		return nil, err
	}
	outputs, err = c.erc20ABI.Unpack("balanceOf", raw)
	if err != nil || len(outputs) < 1 {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode balanceOf output"))
	}
	pctx.ContractBalance = outputs[0].(*big.Int)

	// Live gas price
	gasPrice, err := c.clients(network).SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to get gas price on %s", network)))
	}
	pctx.GasPriceWei = gasPrice

	span.SetStatus(codes.Ok, "gathered")
	return pctx, nil
}

// Simulate performs the read-only dry run.
func (c *Contract) Simulate(ctx context.Context, network string, params domain.ExecutionParams) (*domain.SimulationResult, error) {
	ctx, span := c.tracer.Start(ctx, "contract.simulate",
		trace.WithAttributes(
			attribute.String("network", network),
			attribute.String("amount_in", params.AmountIn.String()),
		),
	)
	defer span.End()

	c.metrics.simulationsTotal.Add(ctx, 1)

	t, err := c.target(network)
	if err != nil {
		return nil, err
	}

	data, err := c.abi.Pack("simulateArbitrage",
		params.TokenA, params.TokenB,
		params.VenueARouter, params.VenueBRouter,
		params.AmountIn, params.MinProfitExpected,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to encode simulateArbitrage: %w", err)
	}

	raw, err := c.call(ctx, network, t.address, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return nil, err
	}

	outputs, err := c.abi.Unpack("simulateArbitrage", raw)
	if err != nil || len(outputs) < 2 {
		span.SetStatus(codes.Error, "decode failed")
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to decode simulateArbitrage output"))
	}

	res := &domain.SimulationResult{
		Profit:     outputs[0].(*big.Int),
		Profitable: outputs[1].(bool),
	}

	span.SetAttributes(
		attribute.String("profit", res.Profit.String()),
		attribute.Bool("profitable", res.Profitable),
	)
	span.SetStatus(codes.Ok, "simulated")
	return res, nil
}

// Execute signs and broadcasts executeArbitrage. onSigned runs between
// signing and broadcast so the pending record is durable before any bytes
// hit the network.
func (c *Contract) Execute(ctx context.Context, network string, params domain.ExecutionParams, onSigned func(hash string) error) (string, error) {
	ctx, span := c.tracer.Start(ctx, "contract.execute",
		trace.WithAttributes(
			attribute.String("network", network),
			attribute.String("amount_in", params.AmountIn.String()),
		),
	)
	defer span.End()

	c.metrics.submissionsTotal.Add(ctx, 1)

	if c.key == nil {
		return "", apperror.New(apperror.CodeUnauthorizedExecutor,
			apperror.WithContext("no executor key configured"))
	}

	t, err := c.target(network)
	if err != nil {
		return "", err
	}
	client := c.clients(network)

	data, err := c.abi.Pack("executeArbitrage",
		params.TokenA, params.TokenB,
		params.VenueARouter, params.VenueBRouter,
		params.AmountIn, params.MinProfitExpected,
		big.NewInt(params.Deadline.Unix()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to encode executeArbitrage: %w", err)
	}

	nonce, err := client.PendingNonceAt(ctx, c.from)
	if err != nil {
		c.metrics.submissionErrors.Add(ctx, 1)
		return "", apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch nonce"))
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		c.metrics.submissionErrors.Add(ctx, 1)
		return "", apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch gas price"))
	}

	// A failing estimate means the node already knows the call reverts:
	// reject before anything is broadcast.
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &t.address,
		Data: data,
	})
	if err != nil {
		c.metrics.submissionErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected pre-broadcast")
		return "", apperror.New(apperror.CodeSubmissionRejected,
			apperror.WithCause(err),
			apperror.WithContext(revertReason(err)))
	}
	gasLimit += gasLimit / 5
	if gasLimit == 0 {
		gasLimit = defaultExecuteGas
	}

	tx := types.NewTransaction(nonce, t.address, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), c.key)
	if err != nil {
		c.metrics.submissionErrors.Add(ctx, 1)
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	hash := signedTx.Hash().Hex()
	span.SetAttributes(attribute.String("tx_hash", hash))

	if onSigned != nil {
		if err := onSigned(hash); err != nil {
			c.metrics.submissionErrors.Add(ctx, 1)
			span.SetStatus(codes.Error, "pending record failed")
			return "", err
		}
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		c.metrics.submissionErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "broadcast failed")
		return hash, apperror.New(apperror.CodeSubmissionRejected,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("broadcast failed for %s", hash)))
	}

	c.logger.Info(ctx, "executeArbitrage submitted",
		"network", network,
		"tx_hash", hash,
		"gas_limit", gasLimit,
		"gas_price_wei", gasPrice.String(),
	)
	span.SetStatus(codes.Ok, "submitted")
	return hash, nil
}

// Receipt fetches the settlement outcome for a submitted hash.
func (c *Contract) Receipt(ctx context.Context, network, hash string) (*domain.ExecutionResult, error) {
	ctx, span := c.tracer.Start(ctx, "contract.receipt",
		trace.WithAttributes(
			attribute.String("network", network),
			attribute.String("tx_hash", hash),
		),
	)
	defer span.End()

	c.metrics.receiptsFetched.Add(ctx, 1)

	t, err := c.target(network)
	if err != nil {
		return nil, err
	}
	client := c.clients(network)

	receipt, err := client.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		span.AddEvent("not_yet_mined")
		return nil, apperror.New(apperror.CodeReceiptNotFound,
			apperror.WithContext(fmt.Sprintf("receipt for %s not available yet", hash)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to fetch receipt for %s", hash)))
	}

	result := &domain.ExecutionResult{
		TxHash:      hash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		GasPriceWei: receipt.EffectiveGasPrice,
	}

	if receipt.Status == types.ReceiptStatusFailed {
		result.Reverted = true
		result.RevertReason = c.revertReasonFor(ctx, network, receipt)
		span.SetAttributes(attribute.String("revert_reason", result.RevertReason))
		span.SetStatus(codes.Ok, "reverted")
		return result, nil
	}

	// The emitted event is authoritative for realized amounts.
	eventID := c.abi.Events["ArbitrageExecuted"].ID
	for _, lg := range receipt.Logs {
		if lg.Address != t.address || len(lg.Topics) == 0 || lg.Topics[0] != eventID {
			continue
		}
		var ev struct {
			VenueA    common.Address
			VenueB    common.Address
			AmountIn  *big.Int
			AmountOut *big.Int
			Profit    *big.Int
		}
		if err := c.abi.UnpackIntoInterface(&ev, "ArbitrageExecuted", lg.Data); err != nil {
			c.logger.Warn(ctx, "failed to decode execution event", "tx_hash", hash, "error", err)
			continue
		}
		result.AmountIn = ev.AmountIn
		result.AmountOut = ev.AmountOut
		result.Profit = ev.Profit
		break
	}

	span.SetStatus(codes.Ok, "confirmed")
	return result, nil
}

// revertReasonFor replays the failed call at its block to recover the revert
// string. Best effort; an empty reason falls back to a generic message.
func (c *Contract) revertReasonFor(ctx context.Context, network string, receipt *types.Receipt) string {
	client := c.clients(network)

	tx, _, err := client.TransactionByHash(ctx, receipt.TxHash)
	if err != nil {
		return "execution reverted"
	}

	_, err = client.CallContract(ctx, ethereum.CallMsg{
		From:     c.from,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}, receipt.BlockNumber)
	if err != nil {
		return revertReason(err)
	}
	return "execution reverted"
}

// revertReason extracts a human-readable reason from an RPC error.
func revertReason(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, "execution reverted"); idx >= 0 {
		reason := strings.TrimPrefix(msg[idx:], "execution reverted")
		reason = strings.TrimLeft(reason, ": ")
		if reason != "" {
			return reason
		}
		return "execution reverted"
	}
	return msg
}
