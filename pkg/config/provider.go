package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// mapProvider is a minimal koanf.Provider backed by an in-memory map, used
// for both injected test layers and parsed YAML file sources so we don't
// need to pull in an extra koanf file/yaml provider submodule.
type mapProvider struct {
	data map[string]any
}

func confMapProvider(data map[string]any) *mapProvider {
	return &mapProvider{data: data}
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("mapProvider does not support ReadBytes")
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.data, nil
}

func loadFileSource(k *koanf.Koanf, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	data := map[string]any{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return k.Load(confMapProvider(data), nil)
}
