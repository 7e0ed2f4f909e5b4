package config

import "context"

type ctxKey struct{}

// NewContext returns a context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext returns the config stored in ctx, or the defaults when the
// root command has not loaded one (help, completion).
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}
	return &Config{
		OutputDir:   DefaultOutputDir,
		Formats:     []string{"html"},
		PNGExporter: DefaultPNGExporter,
		MaxAttempts: DefaultMaxAttempts,
	}
}
