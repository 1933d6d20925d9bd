package config

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Source is an additional configuration layer applied after defaults and
// before environment variables, in the order supplied to Load.
type Source struct {
	Name string
	Path string
	// Raw allows tests to inject an in-memory layer without touching disk.
	Raw map[string]any
}

// Service resolves layered configuration: compiled defaults, then file
// sources in the order given, then environment variables, validated
// against struct tags before being handed back to callers.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
}

type loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
}

func NewService() Service {
	return &loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
	}
}

func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.koanf = koanf.New(".")

	if err := l.koanf.Load(structs.Provider(*Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	for _, src := range sources {
		if src.Raw != nil {
			if err := l.koanf.Load(confMapProvider(src.Raw), nil); err != nil {
				return nil, fmt.Errorf("load source %s: %w", src.Name, err)
			}
			continue
		}
		if src.Path != "" {
			if err := loadFileSource(l.koanf, src.Path); err != nil {
				return nil, fmt.Errorf("load source %s: %w", src.Name, err)
			}
		}
	}

	cfg := &Config{}
	if err := l.koanf.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Environment variables take highest precedence, applied directly
	// against the struct's `env` tags rather than koanf's generic
	// delimiter-based env provider: several of our tags (e.g.
	// continue_on_error) contain underscores that are not path
	// separators, so a blanket delim-split would misparse them.
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := l.validator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
