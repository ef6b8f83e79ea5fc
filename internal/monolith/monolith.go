// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/postgres"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	// EthClient returns the RPC client for the named network. Panics on
	// unknown networks; config validation guarantees every route references
	// a configured network.
	EthClient(network string) *ethclient.Client
	// Postgres returns the shared pool client, or nil when the memory
	// driver is configured.
	Postgres() *postgres.Client
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// app implements the Monolith interface.
type app struct {
	config     *config.Config
	logger     logger.LoggerInterface
	ethClients map[string]*ethclient.Client
	pg         *postgres.Client
	container  di.Container
}

// New creates a new Monolith instance, dialing one RPC client per
// configured network and opening the storage pool when postgres is selected.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*app, error) {
	ethClients := make(map[string]*ethclient.Client, len(cfg.Networks))
	for _, n := range cfg.Networks {
		client, err := ethclient.DialContext(ctx, n.RPCURL)
		if err != nil {
			for _, c := range ethClients {
				c.Close()
			}
			return nil, fmt.Errorf("dial %s rpc: %w", n.Name, err)
		}
		ethClients[n.Name] = client
	}

	var pg *postgres.Client
	if cfg.Storage.Driver == "postgres" {
		var err error
		pg, err = postgres.New(ctx, cfg.Storage)
		if err != nil {
			for _, c := range ethClients {
				c.Close()
			}
			return nil, err
		}
	}

	container := di.NewContainer()

	// Register global services
	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("ethClients", func(network string) *ethclient.Client {
		client, ok := ethClients[network]
		if !ok {
			panic(fmt.Sprintf("monolith: no rpc client for network %q", network))
		}
		return client
	})
	if pg != nil {
		container.Register("postgres", pg)
	}

	return &app{
		config:     cfg,
		logger:     log,
		ethClients: ethClients,
		pg:         pg,
		container:  container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient(network string) *ethclient.Client {
	client, ok := a.ethClients[network]
	if !ok {
		panic(fmt.Sprintf("monolith: no rpc client for network %q", network))
	}
	return client
}

func (a *app) Postgres() *postgres.Client {
	return a.pg
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	for _, c := range a.ethClients {
		c.Close()
	}
	if a.pg != nil {
		a.pg.Close()
	}
	return nil
}
