package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

// Admin operations write the contract's risk settings. They share the
// signing path with executeArbitrage but are only reachable from the
// operator CLI, never from the coordinator.

// Pause halts executeArbitrage on the given network's contract.
func (c *Contract) Pause(ctx context.Context, network string) (string, error) {
	return c.sendAdmin(ctx, network, "pause")
}

// Unpause resumes executeArbitrage.
func (c *Contract) Unpause(ctx context.Context, network string) (string, error) {
	return c.sendAdmin(ctx, network, "unpause")
}

// SetExecutor grants or revokes an executor address.
func (c *Contract) SetExecutor(ctx context.Context, network string, executor common.Address, authorized bool) (string, error) {
	return c.sendAdmin(ctx, network, "setAuthorizedExecutor", executor, authorized)
}

// SetTokenBlacklist flips a token's blacklist flag.
func (c *Contract) SetTokenBlacklist(ctx context.Context, network string, token common.Address, blacklisted bool) (string, error) {
	return c.sendAdmin(ctx, network, "setTokenBlacklist", token, blacklisted)
}

// SetRiskParams updates the contract's risk bounds after local validation,
// so an out-of-range value never costs a reverted transaction.
func (c *Contract) SetRiskParams(ctx context.Context, network string, params domain.RiskParams) (string, error) {
	if err := params.Validate(); err != nil {
		return "", err
	}
	return c.sendAdmin(ctx, network, "setRiskParams",
		params.MinProfitFloor,
		new(big.Int).SetUint64(params.FeeBps),
		params.GasCeilingWei,
		new(big.Int).SetUint64(params.MaxSlippageBps),
	)
}

// SetFeeRecipient updates where skimmed profit fees accrue.
func (c *Contract) SetFeeRecipient(ctx context.Context, network string, recipient common.Address) (string, error) {
	return c.sendAdmin(ctx, network, "setFeeRecipient", recipient)
}

// WithdrawProfit moves accumulated profit for a token to the owner.
func (c *Contract) WithdrawProfit(ctx context.Context, network string, token common.Address, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("withdraw amount must be positive"))
	}
	return c.sendAdmin(ctx, network, "withdrawProfit", token, amount)
}

// EmergencyWithdraw drains the full balance of a token from the contract.
func (c *Contract) EmergencyWithdraw(ctx context.Context, network string, token common.Address) (string, error) {
	return c.sendAdmin(ctx, network, "emergencyWithdraw", token)
}

func (c *Contract) sendAdmin(ctx context.Context, network, method string, args ...interface{}) (string, error) {
	if c.key == nil {
		return "", apperror.New(apperror.CodeUnauthorizedExecutor,
			apperror.WithContext("no signing key configured"))
	}

	t, err := c.target(network)
	if err != nil {
		return "", err
	}
	client := c.clients(network)

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", method, err)
	}

	nonce, err := client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch nonce"))
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to fetch gas price"))
	}
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &t.address,
		Data: data,
	})
	if err != nil {
		return "", apperror.New(apperror.CodeSubmissionRejected,
			apperror.WithCause(err),
			apperror.WithContext(revertReason(err)))
	}
	gasLimit += gasLimit / 5

	tx := types.NewTransaction(nonce, t.address, big.NewInt(0), gasLimit, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(t.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", method, err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return "", apperror.New(apperror.CodeSubmissionRejected,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("broadcast failed for %s", method)))
	}

	hash := signedTx.Hash().Hex()
	c.logger.Info(ctx, "admin transaction submitted",
		"network", network, "method", method, "tx_hash", hash)
	return hash, nil
}

// WaitMined polls for the receipt of an admin transaction until the context
// expires, returning an error when the transaction reverted.
func (c *Contract) WaitMined(ctx context.Context, network, hash string) error {
	client := c.clients(network)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, common.HexToHash(hash))
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return apperror.New(apperror.CodeExecutionReverted,
					apperror.WithContext(fmt.Sprintf("admin transaction %s reverted", hash)))
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return apperror.New(apperror.CodeChainRPCError,
				apperror.WithCause(err),
				apperror.WithContext("failed to fetch receipt"))
		}

		select {
		case <-ctx.Done():
			return apperror.New(apperror.CodeConfirmationTimeout,
				apperror.WithContext(fmt.Sprintf("transaction %s not mined in time", hash)))
		case <-ticker.C:
		}
	}
}
