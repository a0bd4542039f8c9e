package llm

import "fmt"

const defaultHuggingFaceBaseURL = "https://router.huggingface.co/v1"

// huggingFaceModels maps friendly names to router model IDs.
var huggingFaceModels = map[string]string{
	"llama-3.1-8b":  "meta-llama/Llama-3.1-8B-Instruct",
	"llama-3.3-70b": "meta-llama/Llama-3.3-70B-Instruct",
	"qwen-2.5-72b":  "Qwen/Qwen2.5-72B-Instruct",
}

// NewHuggingFaceProvider creates a provider for the Hugging Face inference
// router. Hosted models rarely honor json_schema, so the schema travels in
// the system prompt and the response is requested as a json_object.
func NewHuggingFaceProvider(cfg HuggingFaceConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultHuggingFaceBaseURL
	}
	return newOpenAICompatible(OpenAIConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    baseURL,
		SchemaMode: SchemaPrompt,
	}, huggingFaceModels), nil
}
