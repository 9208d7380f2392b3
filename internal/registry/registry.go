package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"abengine/internal/config"
)

// Model is the opaque handle the engine receives for a resolved
// (name, version) pair.
type Model struct {
	Name    string
	Version string
}

// Registry is a static model catalog backed by config entries or a YAML
// file. It implements the engine's model resolver.
type Registry struct {
	versions map[string]map[string]bool // name -> version set
}

func New(entries []config.ModelEntry) *Registry {
	r := &Registry{versions: make(map[string]map[string]bool)}
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		set := r.versions[entry.Name]
		if set == nil {
			set = make(map[string]bool)
			r.versions[entry.Name] = set
		}
		for _, v := range entry.Versions {
			set[v] = true
		}
	}
	return r
}

type registryFile struct {
	Models []config.ModelEntry `yaml:"models"`
}

// LoadFile reads a registry YAML file (a `models:` list of name/versions).
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model registry yaml: %w", err)
	}
	return New(f.Models), nil
}

// Resolve returns a handle for a registered model or an error when the
// name or version is unknown.
func (r *Registry) Resolve(modelName, modelVersion string) (any, error) {
	set, ok := r.versions[modelName]
	if !ok {
		return nil, fmt.Errorf("model %q is not registered", modelName)
	}
	if !set[modelVersion] {
		return nil, fmt.Errorf("model %q has no version %q", modelName, modelVersion)
	}
	return Model{Name: modelName, Version: modelVersion}, nil
}

// Size reports how many model versions are registered.
func (r *Registry) Size() int {
	n := 0
	for _, set := range r.versions {
		n += len(set)
	}
	return n
}
