package registry

type registerConfig struct {
	name string
}

type RegisterOption func(*registerConfig)

// WithName registers a workflow or activity under the given name instead of its function name.
// Struct activities are always registered under their method names.
func WithName(name string) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.name = name
	}
}

func nameFor(fnValue any, defaultName func(any) string, opts []RegisterOption) string {
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.name != "" {
		return cfg.name
	}

	return defaultName(fnValue)
}
