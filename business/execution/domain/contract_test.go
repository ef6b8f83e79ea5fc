package domain

import (
	"math/big"
	"testing"

	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

func validRiskParams() RiskParams {
	return RiskParams{
		MinProfitFloor: big.NewInt(1000),
		FeeBps:         500,
		GasCeilingWei:  big.NewInt(150_000_000_000),
		MaxSlippageBps: 300,
	}
}

func TestRiskParamsValidate(t *testing.T) {
	if err := validRiskParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RiskParams)
	}{
		{"nil min profit", func(p *RiskParams) { p.MinProfitFloor = nil }},
		{"negative min profit", func(p *RiskParams) { p.MinProfitFloor = big.NewInt(-1) }},
		{"fee above cap", func(p *RiskParams) { p.FeeBps = MaxFeeBps + 1 }},
		{"nil gas ceiling", func(p *RiskParams) { p.GasCeilingWei = nil }},
		{"zero gas ceiling", func(p *RiskParams) { p.GasCeilingWei = big.NewInt(0) }},
		{"slippage above 100%", func(p *RiskParams) { p.MaxSlippageBps = 10001 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validRiskParams()
			tc.mutate(&p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apperror.IsCode(err, apperror.CodeValidationError) {
				t.Fatalf("unexpected error code: %v", err)
			}
		})
	}
}

func TestRiskParamsFeeAtCap(t *testing.T) {
	p := validRiskParams()
	p.FeeBps = MaxFeeBps
	if err := p.Validate(); err != nil {
		t.Fatalf("fee at cap should pass: %v", err)
	}
}
