package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderGemini      = "gemini"
	ProviderOpenAI      = "openai"
	ProviderHuggingFace = "huggingface"
	ProviderAnthropic   = "anthropic"
	ProviderOpenRouter  = "openrouter"
	ProviderMock        = "mock"
)

// Config holds all LLM provider configuration.
type Config struct {
	Provider string

	Gemini      GeminiConfig
	OpenAI      OpenAIConfig
	HuggingFace HuggingFaceConfig
	Anthropic   AnthropicConfig
	OpenRouter  OpenRouterConfig
	Retry       RetryConfig

	// Timeout bounds a single Generate call including retries.
	Timeout time.Duration
}

type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// SchemaMode selects how an OpenAI-compatible endpoint is asked for JSON.
type SchemaMode string

const (
	// SchemaNative sends the schema as a json_schema response format.
	SchemaNative SchemaMode = "native"
	// SchemaPrompt embeds the schema in the system prompt and requests a
	// json_object response. For routers whose models lack json_schema.
	SchemaPrompt SchemaMode = "prompt"
)

type OpenAIConfig struct {
	APIKey     string
	Model      string // Default: "gpt-4o-mini"
	BaseURL    string
	SchemaMode SchemaMode
}

type HuggingFaceConfig struct {
	APIKey  string
	Model   string // Default: "meta-llama/Llama-3.1-8B-Instruct"
	BaseURL string // Default: "https://router.huggingface.co/v1"
}

type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-haiku"
}

type OpenRouterConfig struct {
	APIKey  string
	Model   string // Default: "google/gemini-2.0-flash-exp"
	BaseURL string // Default: "https://openrouter.ai/api/v1"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderGemini,
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenAI: OpenAIConfig{
			Model:      "gpt-4o-mini",
			SchemaMode: SchemaNative,
		},
		HuggingFace: HuggingFaceConfig{
			Model:   "meta-llama/Llama-3.1-8B-Instruct",
			BaseURL: defaultHuggingFaceBaseURL,
		},
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenRouter: OpenRouterConfig{
			Model:   "google/gemini-2.0-flash-exp",
			BaseURL: defaultOpenRouterBaseURL,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 120 * time.Second,
	}
}

// DiscoverConfig checks standard API key env vars in priority order
// (Gemini, OpenAI, Hugging Face, Anthropic, OpenRouter) and returns a
// Config for the first provider whose key is found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = ProviderGemini
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = ProviderOpenAI
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	for _, env := range []string{"HF_TOKEN", "HUGGINGFACE_API_KEY"} {
		if k := os.Getenv(env); k != "" {
			cfg.Provider = ProviderHuggingFace
			cfg.HuggingFace.APIKey = k
			return cfg, true
		}
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = ProviderAnthropic
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = ProviderOpenRouter
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}

	return Config{}, false
}

// HasKey reports whether the selected provider has credentials.
func (c Config) HasKey() bool {
	return c.Validate() == nil
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("IGCSE_GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("IGCSE_OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderHuggingFace:
		if c.HuggingFace.APIKey == "" {
			return fmt.Errorf("IGCSE_HUGGINGFACE_API_KEY is required for the huggingface provider")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("IGCSE_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderOpenRouter:
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("IGCSE_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}
