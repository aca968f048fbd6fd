package llm

import (
	"fmt"
)

// Config selects the active provider globally plus optional per-component
// overrides (scheduler, debate, optimizer, context). Loaded from
// config/models.yaml.
type Config struct {
	ActiveProvider string                     `yaml:"active_provider"`
	Components     map[string]ComponentConfig `yaml:"components"`
}

// ComponentConfig overrides provider or model for one engine component.
type ComponentConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Manager resolves providers by component, falling back to the global active
// provider.
type Manager struct {
	config    Config
	providers map[string]Provider
}

// NewManager wires the known providers. The grounded provider is registered
// separately because callers opt into it by name.
func NewManager(config Config) *Manager {
	if config.ActiveProvider == "" {
		config.ActiveProvider = "gemini"
	}
	return &Manager{
		config: config,
		providers: map[string]Provider{
			"gemini":          &GeminiProvider{},
			"gemini-grounded": &GroundedGeminiProvider{},
			"deepseek":        &DeepSeekProvider{},
		},
	}
}

// RegisterProvider adds or replaces a named provider. Tests inject mocks here.
func (m *Manager) RegisterProvider(name string, p Provider) {
	m.providers[name] = p
}

// ProviderFor resolves the provider for a component, honoring overrides.
func (m *Manager) ProviderFor(component string) Provider {
	if cc, ok := m.config.Components[component]; ok && cc.Provider != "" {
		if p, ok := m.providers[cc.Provider]; ok {
			return p
		}
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}
	return m.providers["gemini"]
}

// ProviderByName resolves a provider directly.
func (m *Manager) ProviderByName(name string) (Provider, error) {
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("provider %q not registered", name)
}

// SetActiveProvider switches the global provider at runtime.
func (m *Manager) SetActiveProvider(name string) error {
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("provider %q not registered", name)
	}
	m.config.ActiveProvider = name
	return nil
}

// ActiveProvider returns the current global provider name.
func (m *Manager) ActiveProvider() string {
	return m.config.ActiveProvider
}
