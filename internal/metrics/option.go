package metrics

// Provider identifies a metrics export backend.
type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "otelCollector"
)

// ProviderCfg configures a single export backend.
type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// NewOtelCollectorConfig builds an OTLP collector provider config.
func NewOtelCollectorConfig(url string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OtelCollector,
		Endpoint: url,
		Headers:  headers,
		Insecure: insecure,
	}
}

// Config aggregates the metric provider options.
type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

// OptionFn mutates the metric provider Config.
type OptionFn func(config Config) Config

// WithServiceName sets the OTEL service name resource attribute.
func WithServiceName(name string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = name
		return config
	}
}

// WithProviderConfig appends an export backend.
func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

// ServeOption configures the Prometheus exposition endpoint.
type ServeOption func(*serveConfig)

type serveConfig struct {
	port string
	path string
}

// WithPort sets the exposition port (default "9090").
func WithPort(port string) ServeOption {
	return func(c *serveConfig) {
		c.port = port
	}
}

// WithPath sets the exposition path (default "/metrics").
func WithPath(path string) ServeOption {
	return func(c *serveConfig) {
		c.path = path
	}
}
