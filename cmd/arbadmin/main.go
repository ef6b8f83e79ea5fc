// Package main is the operator CLI for the deployed arbitrage contract:
// pausing, executor authorization, token blacklisting, risk parameters and
// profit withdrawal.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/infra/evm"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

const usage = `usage: arbadmin [flags] <command> [args]

commands:
  config                          print the contract's current configuration
  pause                           pause executeArbitrage
  unpause                         resume executeArbitrage
  authorize <address>             grant executor rights
  revoke <address>                revoke executor rights
  blacklist <token> <on|off>      flip a token's blacklist flag
  set-risk <minProfit> <feeBps> <gasCeilingWei> <maxSlippageBps>
                                  update risk parameters
  set-fee-recipient <address>     update the fee recipient
  withdraw <token> <amount>       withdraw accumulated profit (raw units)
  emergency-withdraw <token>      drain a token's full balance
`

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	network := flag.String("network", "", "Network name from the configuration")
	wait := flag.Duration("wait", 2*time.Minute, "How long to wait for the transaction to mine (0 skips waiting)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), *configPath, *network, *wait, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, network string, wait time.Duration, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if network == "" {
		if len(cfg.Networks) != 1 {
			return fmt.Errorf("multiple networks configured, pass -network")
		}
		network = cfg.Networks[0].Name
	}

	var rpcURL string
	for _, n := range cfg.Networks {
		if n.Name == network {
			rpcURL = n.RPCURL
		}
	}
	if rpcURL == "" {
		return fmt.Errorf("unknown network %q", network)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), "arbadmin", nil)

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", network, err)
	}
	defer client.Close()

	// The owner key takes precedence so operators never need to hand the
	// hot executor key to the CLI.
	key := os.Getenv("ARB_ADMIN_PRIVATE_KEY")
	if key == "" {
		key = cfg.Execution.ExecutorPrivateKey
	}

	contract, err := evm.NewContract(cfg.Networks, key,
		func(string) *ethclient.Client { return client }, log)
	if err != nil {
		return fmt.Errorf("failed to create contract client: %w", err)
	}

	hash, err := dispatch(ctx, contract, network, args)
	if err != nil {
		return err
	}
	if hash == "" {
		return nil
	}

	fmt.Printf("submitted %s\n", hash)
	if wait <= 0 {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := contract.WaitMined(waitCtx, network, hash); err != nil {
		return err
	}
	fmt.Println("confirmed")
	return nil
}

func dispatch(ctx context.Context, contract *evm.Contract, network string, args []string) (string, error) {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "config":
		cfg, err := contract.Config(ctx, network)
		if err != nil {
			return "", err
		}
		fmt.Printf("paused:            %v\n", cfg.Paused)
		fmt.Printf("min profit floor:  %s\n", cfg.MinProfitFloor)
		fmt.Printf("fee pct:           %s\n", cfg.FeePct)
		fmt.Printf("fee recipient:     %s\n", cfg.FeeRecipient.Hex())
		fmt.Printf("gas ceiling (wei): %s\n", cfg.GasCeilingWei)
		fmt.Printf("max slippage bps:  %s\n", cfg.MaxSlippageBps)
		return "", nil

	case "pause":
		return contract.Pause(ctx, network)

	case "unpause":
		return contract.Unpause(ctx, network)

	case "authorize":
		addr, err := parseAddress(rest, 0)
		if err != nil {
			return "", err
		}
		return contract.SetExecutor(ctx, network, addr, true)

	case "revoke":
		addr, err := parseAddress(rest, 0)
		if err != nil {
			return "", err
		}
		return contract.SetExecutor(ctx, network, addr, false)

	case "blacklist":
		token, err := parseAddress(rest, 0)
		if err != nil {
			return "", err
		}
		if len(rest) < 2 || (rest[1] != "on" && rest[1] != "off") {
			return "", fmt.Errorf("blacklist needs on|off")
		}
		return contract.SetTokenBlacklist(ctx, network, token, rest[1] == "on")

	case "set-risk":
		if len(rest) != 4 {
			return "", fmt.Errorf("set-risk needs minProfit feeBps gasCeilingWei maxSlippageBps")
		}
		minProfit, ok := new(big.Int).SetString(rest[0], 10)
		if !ok {
			return "", fmt.Errorf("invalid min profit %q", rest[0])
		}
		var feeBps, slippageBps uint64
		if _, err := fmt.Sscanf(rest[1], "%d", &feeBps); err != nil {
			return "", fmt.Errorf("invalid fee bps %q", rest[1])
		}
		ceiling, ok := new(big.Int).SetString(rest[2], 10)
		if !ok {
			return "", fmt.Errorf("invalid gas ceiling %q", rest[2])
		}
		if _, err := fmt.Sscanf(rest[3], "%d", &slippageBps); err != nil {
			return "", fmt.Errorf("invalid slippage bps %q", rest[3])
		}
		return contract.SetRiskParams(ctx, network, domain.RiskParams{
			MinProfitFloor: minProfit,
			FeeBps:         feeBps,
			GasCeilingWei:  ceiling,
			MaxSlippageBps: slippageBps,
		})

	case "set-fee-recipient":
		addr, err := parseAddress(rest, 0)
		if err != nil {
			return "", err
		}
		return contract.SetFeeRecipient(ctx, network, addr)

	case "withdraw":
		token, err := parseAddress(rest, 0)
		if err != nil {
			return "", err
		}
		if len(rest) < 2 {
			return "", fmt.Errorf("withdraw needs token and amount")
		}
		amount, ok := new(big.Int).SetString(rest[1], 10)
		if !ok {
			return "", fmt.Errorf("invalid amount %q", rest[1])
		}
		return contract.WithdrawProfit(ctx, network, token, amount)

	case "emergency-withdraw":
		token, err := parseAddress(rest, 0)
		if err != nil {
			return "", err
		}
		return contract.EmergencyWithdraw(ctx, network, token)

	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}

func parseAddress(args []string, idx int) (common.Address, error) {
	if len(args) <= idx {
		return common.Address{}, fmt.Errorf("missing address argument")
	}
	if !common.IsHexAddress(args[idx]) {
		return common.Address{}, fmt.Errorf("invalid address %q", args[idx])
	}
	return common.HexToAddress(args[idx]), nil
}
