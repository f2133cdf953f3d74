package config

import "encoding/json"

// Config is the top-level configuration
type Config struct {
	DataDir    string                     `json:"dataDir"`
	Channels   map[string]json.RawMessage `json:"channels"`
	Engine     EngineConfig               `json:"engine"`
	Translator TranslatorConfig           `json:"translator"`
	Sweep      SweepConfig                `json:"sweep"`
}

// EngineConfig tunes batching and delivery. Zero values fall back to the
// engine's built-in defaults.
type EngineConfig struct {
	QuietIntervalSeconds int `json:"quietIntervalSeconds"`
	ItemChunkSize        int `json:"itemChunkSize"`
	GroupChunkSize       int `json:"groupChunkSize"`
	GroupThreshold       int `json:"groupThreshold"`
	RetryCapSeconds      int `json:"retryCapSeconds"`
	BusBuffer            int `json:"busBuffer"`
}

// TranslatorConfig selects the caption translation backend.
type TranslatorConfig struct {
	Backend string `json:"backend"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
	Model   string `json:"model"`
}

// SweepConfig controls the idle-batch sweeper.
type SweepConfig struct {
	Schedule       string `json:"schedule"`
	IdleTTLMinutes int    `json:"idleTtlMinutes"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "~/.captionbot/data",
		Translator: TranslatorConfig{
			Backend: "google",
		},
		Sweep: SweepConfig{
			Schedule:       "@every 10m",
			IdleTTLMinutes: 60,
		},
	}
}
