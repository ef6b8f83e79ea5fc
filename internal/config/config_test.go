package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Networks: []NetworkConfig{{
			Name:            "testnet",
			ChainID:         1,
			RPCURL:          "http://localhost:8545",
			ContractAddress: "0x00000000000000000000000000000000000000c1",
		}},
		Venues: []VenueConfig{
			{ID: "uni", Network: "testnet", RouterAddress: "0x00000000000000000000000000000000000000a1", FeeBps: 30},
			{ID: "sushi", Network: "testnet", RouterAddress: "0x00000000000000000000000000000000000000b1", FeeBps: 30},
		},
		Tokens: []TokenConfig{
			{Symbol: "WETH", Network: "testnet", Address: "0x0000000000000000000000000000000000000001", Decimals: 18},
			{Symbol: "USDC", Network: "testnet", Address: "0x0000000000000000000000000000000000000002", Decimals: 6},
		},
		Routes: []RouteConfig{
			{Network: "testnet", Base: "WETH", Quote: "USDC", VenueA: "uni", VenueB: "sushi", AmountIn: 1},
		},
		Detection: DetectionConfig{
			Interval:      3 * time.Second,
			QuoteTimeout:  2 * time.Second,
			MinProfitBps:  100,
			ExpiryHorizon: 30 * time.Second,
		},
		Execution: ExecutionConfig{
			Workers:             4,
			PollInterval:        500 * time.Millisecond,
			ConfirmPollInterval: 3 * time.Second,
		},
		Storage: StorageConfig{Driver: "memory"},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no networks", func(c *Config) { c.Networks = nil }, "at least one network"},
		{"missing rpc url", func(c *Config) { c.Networks[0].RPCURL = "" }, "rpc_url"},
		{"bad router address", func(c *Config) { c.Venues[0].RouterAddress = "not-hex" }, "router_address"},
		{"route venue equal", func(c *Config) { c.Routes[0].VenueB = "uni" }, "must differ"},
		{"route amount zero", func(c *Config) { c.Routes[0].AmountIn = 0 }, "amount_in"},
		{"zero detection interval", func(c *Config) { c.Detection.Interval = 0 }, "detection.interval"},
		{"negative detection interval", func(c *Config) { c.Detection.Interval = -time.Second }, "detection.interval"},
		{"zero poll interval", func(c *Config) { c.Execution.PollInterval = 0 }, "poll_interval"},
		{"zero confirm poll interval", func(c *Config) { c.Execution.ConfirmPollInterval = 0 }, "confirm_poll_interval"},
		{"zero workers", func(c *Config) { c.Execution.Workers = 0 }, "workers"},
		{"unknown storage driver", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.driver"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
