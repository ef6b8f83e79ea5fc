package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

var (
	tokenA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func validParams() ExecutionParams {
	return ExecutionParams{
		TokenA:            tokenA,
		TokenB:            tokenB,
		VenueARouter:      common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		VenueBRouter:      common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		AmountIn:          big.NewInt(1_000_000),
		MinProfitExpected: big.NewInt(5_000),
		Deadline:          time.Now().Add(30 * time.Second),
	}
}

func validConfig() ContractConfig {
	return ContractConfig{
		Paused:         false,
		MinProfitFloor: decimal.NewFromInt(1_000),
		FeePct:         decimal.NewFromInt(5),
		GasCeilingWei:  big.NewInt(100_000_000_000),
		FetchedAt:      time.Now(),
	}
}

func validPlanContext() PlanContext {
	return PlanContext{
		ExecutorAuthorized: true,
		Blacklisted:        map[common.Address]bool{},
		ContractBalance:    big.NewInt(2_000_000),
		GasPriceWei:        big.NewInt(50_000_000_000),
	}
}

func TestValidatePlanAccepts(t *testing.T) {
	if err := ValidatePlan(validParams(), validConfig(), validPlanContext()); err != nil {
		t.Fatalf("expected valid plan to pass, got %v", err)
	}
}

func TestValidatePlanGates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ExecutionParams, *ContractConfig, *PlanContext)
		code   apperror.Code
	}{
		{
			name:   "unauthorized executor",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) { x.ExecutorAuthorized = false },
			code:   apperror.CodeUnauthorizedExecutor,
		},
		{
			name:   "paused contract",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) { c.Paused = true },
			code:   apperror.CodeContractPaused,
		},
		{
			name:   "blacklisted tokenA",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) { x.Blacklisted[tokenA] = true },
			code:   apperror.CodeTokenBlacklisted,
		},
		{
			name:   "blacklisted tokenB",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) { x.Blacklisted[tokenB] = true },
			code:   apperror.CodeTokenBlacklisted,
		},
		{
			name: "gas above ceiling",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) {
				x.GasPriceWei = new(big.Int).Add(c.GasCeilingWei, big.NewInt(1))
			},
			code: apperror.CodeGasPriceAboveCeiling,
		},
		{
			name:   "zero amountIn",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) { p.AmountIn = big.NewInt(0) },
			code:   apperror.CodeInvalidInput,
		},
		{
			name:   "negative minProfit",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) { p.MinProfitExpected = big.NewInt(-1) },
			code:   apperror.CodeInvalidInput,
		},
		{
			name:   "minProfit below floor",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) { p.MinProfitExpected = big.NewInt(999) },
			code:   apperror.CodeProfitBelowMinimum,
		},
		{
			name: "balance below amountIn",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) {
				x.ContractBalance = big.NewInt(999_999)
			},
			code: apperror.CodeInsufficientBalance,
		},
		{
			name: "deadline passed",
			mutate: func(p *ExecutionParams, c *ContractConfig, x *PlanContext) {
				p.Deadline = time.Now().Add(-time.Second)
			},
			code: apperror.CodeDeadlineExceeded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params, cfg, pctx := validParams(), validConfig(), validPlanContext()
			tc.mutate(&params, &cfg, &pctx)

			err := ValidatePlan(params, cfg, pctx)
			if err == nil {
				t.Fatal("expected plan to be rejected")
			}
			if !apperror.IsCode(err, tc.code) {
				t.Fatalf("expected code %s, got %v", tc.code, err)
			}
		})
	}
}

func TestSettleLegsProfit(t *testing.T) {
	profit, err := SettleLegs(big.NewInt(1000), big.NewInt(500), big.NewInt(1050), big.NewInt(40))
	if err != nil {
		t.Fatalf("expected legs to settle, got %v", err)
	}
	if profit.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected profit 50, got %s", profit)
	}
}

func TestSettleLegsGuards(t *testing.T) {
	cases := []struct {
		name                     string
		leg1Out, leg2Out, minExp *big.Int
		code                     apperror.Code
	}{
		{"zero leg1 output", big.NewInt(0), big.NewInt(1100), big.NewInt(0), apperror.CodeInsufficientLiquidity},
		{"principal not recovered", big.NewInt(500), big.NewInt(999), big.NewInt(0), apperror.CodePrincipalNotRecovered},
		{"profit below expectation", big.NewInt(500), big.NewInt(1030), big.NewInt(40), apperror.CodeProfitBelowMinimum},
		{"break-even below expectation", big.NewInt(500), big.NewInt(1000), big.NewInt(1), apperror.CodeProfitBelowMinimum},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SettleLegs(big.NewInt(1000), tc.leg1Out, tc.leg2Out, tc.minExp)
			if err == nil {
				t.Fatal("expected settlement to be rejected")
			}
			if !apperror.IsCode(err, tc.code) {
				t.Fatalf("expected code %s, got %v", tc.code, err)
			}
		})
	}
}

func TestSettleLegsRecoversExactPrincipal(t *testing.T) {
	// leg2Out equal to amountIn with zero expectation settles at zero profit
	profit, err := SettleLegs(big.NewInt(1000), big.NewInt(500), big.NewInt(1000), big.NewInt(0))
	if err != nil {
		t.Fatalf("expected break-even settlement, got %v", err)
	}
	if profit.Sign() != 0 {
		t.Fatalf("expected zero profit, got %s", profit)
	}
}

func TestSkimFee(t *testing.T) {
	cases := []struct {
		name         string
		profit       *big.Int
		feePct       decimal.Decimal
		wantFee      int64
		wantRetained int64
	}{
		{"five percent", big.NewInt(1000), decimal.NewFromInt(5), 50, 950},
		{"rounds down", big.NewInt(999), decimal.NewFromInt(5), 49, 950},
		{"zero fee", big.NewInt(1000), decimal.Zero, 0, 1000},
		{"zero profit", big.NewInt(0), decimal.NewFromInt(5), 0, 0},
		{"nil profit", nil, decimal.NewFromInt(5), 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee, retained := SkimFee(tc.profit, tc.feePct)
			if fee.Cmp(big.NewInt(tc.wantFee)) != 0 {
				t.Errorf("expected fee %d, got %s", tc.wantFee, fee)
			}
			if retained.Cmp(big.NewInt(tc.wantRetained)) != 0 {
				t.Errorf("expected retained %d, got %s", tc.wantRetained, retained)
			}
		})
	}
}

func TestSkimFeeConservesProfit(t *testing.T) {
	for _, profit := range []int64{1, 7, 100, 12345, 1_000_000} {
		p := big.NewInt(profit)
		fee, retained := SkimFee(p, decimal.NewFromInt(5))
		sum := new(big.Int).Add(fee, retained)
		if sum.Cmp(p) != 0 {
			t.Fatalf("fee %s + retained %s != profit %s", fee, retained, p)
		}
	}
}
