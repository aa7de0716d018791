package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	Workers       int           `yaml:"workers"`
	LLM           LLMConfig     `yaml:"llm"`
}

type LLMConfig struct {
	// Enabled gates real model calls; when false the gateway serves the
	// fixed fake response with simulated latency.
	Enabled     bool          `yaml:"enabled"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Ollama      OllamaConfig  `yaml:"ollama"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

func LoadConfig(path string) (*Config, error) {
	apiTimeout := 15 * time.Second
	tokenDuration := 1 * time.Hour

	cfg := &Config{
		Addr:          getEnv("HELPDESK_ADDR", ":8080"),
		JWTSecret:     getEnv("HELPDESK_JWT_SECRET", "supersecretkey"),
		APITimeout:    apiTimeout,
		DatabasePath:  getEnv("HELPDESK_DATABASE_PATH", "helpdesk.db"),
		TokenDuration: tokenDuration,
		Workers:       4,
		LLM: LLMConfig{
			Enabled:     os.Getenv("HELPDESK_ALLOW_LLM_CALL") == "true",
			Model:       getEnv("HELPDESK_LLM_MODEL", "llama3.2"),
			MaxTokens:   1024,
			Temperature: 0.7,
			Timeout:     30 * time.Second,
			Ollama: OllamaConfig{
				BaseURL:                 getEnv("HELPDESK_OLLAMA_URL", "http://localhost:11434"),
				Timeout:                 30 * time.Second,
				CircuitFailureThreshold: 5,
				CircuitReset:            30 * time.Second,
			},
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
