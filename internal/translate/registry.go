package translate

import "fmt"

// Config holds backend settings shared by all translator factories.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Factory creates a Translator from config.
type Factory func(cfg Config) (Translator, error)

var registry = map[string]Factory{}

// Register adds a translator factory to the registry.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// New builds the named translator. The empty name and "none" map to Noop.
func New(name string, cfg Config) (Translator, error) {
	if name == "" || name == "none" {
		return Noop{}, nil
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("no translator registered for %q", name)
	}
	return factory(cfg)
}

// RegisteredNames returns all registered backend names.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
