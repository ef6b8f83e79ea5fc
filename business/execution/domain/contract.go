package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

func errInvalidRisk(msg string) error {
	return apperror.New(apperror.CodeValidationError, apperror.WithContext(msg))
}

// ContractConfig is the read-only snapshot of the deployed contract's risk
// parameters, refreshed per cycle and never cached indefinitely.
type ContractConfig struct {
	Paused          bool
	MinProfitFloor  decimal.Decimal // raw tokenA units
	FeePct          decimal.Decimal // skim percentage of profit, e.g. 5 = 5%
	FeeRecipient    common.Address
	GasCeilingWei   *big.Int
	MaxSlippageBps  decimal.Decimal
	FetchedAt       time.Time
}

// RiskParams are the writable risk settings of the deployed contract.
// Amounts are raw units, percentages are basis points.
type RiskParams struct {
	MinProfitFloor *big.Int
	FeeBps         uint64
	GasCeilingWei  *big.Int
	MaxSlippageBps uint64
}

// MaxFeeBps caps the contract fee skim at 10% of profit.
const MaxFeeBps = 1000

// Validate rejects parameter sets the contract itself would refuse.
func (p RiskParams) Validate() error {
	if p.MinProfitFloor == nil || p.MinProfitFloor.Sign() < 0 {
		return errInvalidRisk("min profit floor must be non-negative")
	}
	if p.FeeBps > MaxFeeBps {
		return errInvalidRisk("fee exceeds 1000 bps")
	}
	if p.GasCeilingWei == nil || p.GasCeilingWei.Sign() <= 0 {
		return errInvalidRisk("gas ceiling must be positive")
	}
	if p.MaxSlippageBps > 10000 {
		return errInvalidRisk("slippage exceeds 10000 bps")
	}
	return nil
}

// ExecutionParams are the arguments to one executeArbitrage call.
type ExecutionParams struct {
	TokenA            common.Address
	TokenB            common.Address
	VenueARouter      common.Address
	VenueBRouter      common.Address
	AmountIn          *big.Int // raw tokenA units
	MinProfitExpected *big.Int // raw tokenA units
	Deadline          time.Time
}

// SimulationResult is the outcome of the read-only simulateArbitrage dry
// run.
type SimulationResult struct {
	Profit     *big.Int // raw tokenA units
	Profitable bool
}

// ExecutionResult carries the fields of the emitted execution event. The
// event is authoritative for realized profit; it is never recomputed
// off-chain from assumptions.
type ExecutionResult struct {
	TxHash      string
	BlockNumber uint64
	AmountIn    *big.Int
	AmountOut   *big.Int // tokenA recovered after leg 2
	Profit      *big.Int // net of skimmed fee
	GasUsed     uint64
	GasPriceWei *big.Int
	Reverted    bool
	RevertReason string
}
