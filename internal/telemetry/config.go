package telemetry

// Config holds configuration for the tracer
type Config struct {
	// ServiceName is the name of the service
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, production)
	Environment string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used
	Enabled bool

	// Endpoint is the OTLP/HTTP collector, either host:port or a full URL.
	// If empty, spans are recorded but not exported
	Endpoint string

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns the configuration used when nothing is set.
// Tracing is off for the CLI by default.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "plancraft",
		ServiceVersion: "dev",
		Environment:    "development",
		Enabled:        false,
		SampleRate:     1.0,
	}
}

// ProductionConfig exports to endpoint and samples 10% of traces.
func ProductionConfig(endpoint string) Config {
	return Config{
		ServiceName:    "plancraft",
		ServiceVersion: "unknown",
		Environment:    "production",
		Enabled:        true,
		Endpoint:       endpoint,
		SampleRate:     0.1,
	}
}

// sampleRate clamps the configured rate to [0, 1].
func (c Config) sampleRate() float64 {
	return min(max(c.SampleRate, 0), 1)
}
