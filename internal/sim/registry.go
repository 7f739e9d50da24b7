package sim

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh, fully isolated model instance from a parameter
// bag and a seed.
type Factory func(params Params, seed int64) (Model, error)

// Definition registers a model kind with the engine: its accepted parameter
// names (the configuration schema batch sweeps are validated against) and
// its factory.
type Definition struct {
	Kind       string
	ParamNames []string
	New        Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Definition)
)

func Register(def Definition) error {
	if def.Kind == "" {
		return fmt.Errorf("model kind is required")
	}
	if def.New == nil {
		return fmt.Errorf("model factory is required for kind %s", def.Kind)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[def.Kind]; exists {
		return fmt.Errorf("duplicate model kind: %s", def.Kind)
	}
	registry[def.Kind] = def
	return nil
}

func MustRegister(def Definition) {
	if err := Register(def); err != nil {
		panic(err)
	}
}

func Lookup(kind string) (Definition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[kind]
	return def, ok
}

func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for kind := range registry {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
