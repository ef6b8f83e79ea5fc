package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

// PlanContext is the snapshot of on-chain state the guards run against.
// Off-chain code treats the executor set and blacklist as read-only
// snapshots refreshed per cycle.
type PlanContext struct {
	ExecutorAuthorized bool
	Blacklisted        map[common.Address]bool
	ContractBalance    *big.Int // tokenA held by the contract, raw units
	GasPriceWei        *big.Int
}

// ValidatePlan mirrors the contract's entry guards. Any violation fails the
// whole call before a single token moves. The same checks run off-chain at
// claim time so a doomed submission is never broadcast.
func ValidatePlan(params ExecutionParams, cfg ContractConfig, pctx PlanContext) error {
	if !pctx.ExecutorAuthorized {
		return apperror.New(apperror.CodeUnauthorizedExecutor,
			apperror.WithContext("caller is not an authorized executor"))
	}
	if cfg.Paused {
		return apperror.New(apperror.CodeContractPaused,
			apperror.WithContext("contract is paused"))
	}
	if pctx.Blacklisted[params.TokenA] || pctx.Blacklisted[params.TokenB] {
		return apperror.New(apperror.CodeTokenBlacklisted,
			apperror.WithContext("token is blacklisted"))
	}
	if cfg.GasCeilingWei != nil && cfg.GasCeilingWei.Sign() > 0 &&
		pctx.GasPriceWei != nil && pctx.GasPriceWei.Cmp(cfg.GasCeilingWei) > 0 {
		return apperror.New(apperror.CodeGasPriceAboveCeiling,
			apperror.WithContext(fmt.Sprintf("gas price %s above ceiling %s", pctx.GasPriceWei, cfg.GasCeilingWei)))
	}
	if params.AmountIn == nil || params.AmountIn.Sign() <= 0 {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("amountIn must be positive"))
	}
	if params.MinProfitExpected == nil || params.MinProfitExpected.Sign() < 0 {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("minProfitExpected must be non-negative"))
	}
	if floor := cfg.MinProfitFloor; floor.IsPositive() {
		minProfit := decimal.NewFromBigInt(params.MinProfitExpected, 0)
		if minProfit.LessThan(floor) {
			return apperror.New(apperror.CodeProfitBelowMinimum,
				apperror.WithContext(fmt.Sprintf("minProfitExpected %s below floor %s", minProfit, floor)))
		}
	}
	if pctx.ContractBalance == nil || pctx.ContractBalance.Cmp(params.AmountIn) < 0 {
		return apperror.New(apperror.CodeInsufficientBalance,
			apperror.WithContext("contract does not hold amountIn of tokenA"))
	}
	if !params.Deadline.IsZero() && time.Now().After(params.Deadline) {
		return apperror.New(apperror.CodeDeadlineExceeded,
			apperror.WithContext("execution deadline already passed"))
	}
	return nil
}

// SettleLegs mirrors the contract's swap guards. leg1Out is the tokenB
// received from venue A; leg2Out is the tokenA recovered from venue B. Both
// legs settle or neither does: a revert here means no partial swap state
// persists on-chain.
func SettleLegs(amountIn, leg1Out, leg2Out, minProfitExpected *big.Int) (*big.Int, error) {
	if leg1Out == nil || leg1Out.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext("leg 1 produced zero output"))
	}
	// Leg 2 minimum output is amountIn itself: never fail to recover
	// principal.
	if leg2Out == nil || leg2Out.Cmp(amountIn) < 0 {
		return nil, apperror.New(apperror.CodePrincipalNotRecovered,
			apperror.WithContext("leg 2 output below principal"))
	}

	profit := new(big.Int).Sub(leg2Out, amountIn)
	if profit.Cmp(minProfitExpected) < 0 {
		return nil, apperror.New(apperror.CodeProfitBelowMinimum,
			apperror.WithContext(fmt.Sprintf("profit %s below expectation %s", profit, minProfitExpected)))
	}
	return profit, nil
}

// SkimFee splits profit into the skimmed fee and the retained remainder.
// feePct is a percentage of profit, bounded by administrative checks at 10.
func SkimFee(profit *big.Int, feePct decimal.Decimal) (fee, retained *big.Int) {
	if profit == nil || profit.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	if !feePct.IsPositive() {
		return big.NewInt(0), new(big.Int).Set(profit)
	}
	feeDec := decimal.NewFromBigInt(profit, 0).Mul(feePct).Div(decimal.NewFromInt(100)).Floor()
	fee = feeDec.BigInt()
	retained = new(big.Int).Sub(profit, fee)
	return fee, retained
}
