package secret

import (
	"context"
	"fmt"
	"os"

	"github.com/fmf/pipeline/engine/core"
)

// Provider resolves a named secret at call time, so credentials never
// need to sit in a resolved config struct any longer than the single
// call that needs them.
type Provider interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// EnvProvider resolves secrets from environment variables, the default
// and simplest provider: name is used verbatim as the variable name.
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider { return &EnvProvider{} }

func (p *EnvProvider) Resolve(_ context.Context, name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", core.NewError(core.ErrSecret, fmt.Sprintf("secret %q not set", name), nil)
	}
	return value, nil
}

// StaticProvider resolves secrets from an in-memory map, useful for
// tests and for runs that source secrets from an already-decrypted
// config layer rather than the process environment.
type StaticProvider struct {
	values map[string]string
}

func NewStaticProvider(values map[string]string) *StaticProvider {
	return &StaticProvider{values: values}
}

func (p *StaticProvider) Resolve(_ context.Context, name string) (string, error) {
	value, ok := p.values[name]
	if !ok {
		return "", core.NewError(core.ErrSecret, fmt.Sprintf("secret %q not set", name), nil)
	}
	return value, nil
}
