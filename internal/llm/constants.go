package llm

// Provider identifies the LLM backend.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderOllama    Provider = "ollama"
	ProviderAnthropic Provider = "anthropic"
)

// DefaultOllamaURL is the default URL for a local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// ValidateProvider checks if the given provider string is supported.
func ValidateProvider(p string) (Provider, error) {
	switch Provider(p) {
	case ProviderGemini, ProviderOpenAI, ProviderOllama, ProviderAnthropic:
		return Provider(p), nil
	default:
		return "", &UnsupportedProviderError{Provider: p}
	}
}

// UnsupportedProviderError reports a provider name outside the supported set.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return "unsupported LLM provider: " + e.Provider + " (supported: gemini, openai, ollama, anthropic)"
}
