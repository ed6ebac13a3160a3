package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
)

// configBuilder merges partial configs in priority order: sources added
// first win for any field they set.
type configBuilder struct {
	configs []Config
	err     error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{configs: make([]Config, 0, 2)}
}

func (b *configBuilder) withEnv() *configBuilder {
	var envCfg Config
	if err := env.Parse(&envCfg); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("error getting env configs: %w", err))
		return b
	}

	b.configs = append(b.configs, envCfg)
	return b
}

func (b *configBuilder) withDefaults() *configBuilder {
	b.configs = append(b.configs, Default())
	return b
}

func (b *configBuilder) build() (Config, error) {
	if b.err != nil {
		return Config{}, fmt.Errorf("error occured during building config: %w", b.err)
	}

	var cfg Config
	for _, c := range b.configs {
		if err := mergo.Merge(&cfg, c); err != nil {
			return Config{}, fmt.Errorf("error merging configs: %w", err)
		}
	}

	return cfg, cfg.validate()
}
