package embed

import "time"

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model.
	DefaultOllamaModel = "qwen3-embedding:0.6b"

	// OllamaConnectTimeout bounds the initial health check.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize is the HTTP connection pool size.
	OllamaPoolSize = 4

	// DefaultTimeout bounds a single embed request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the retry budget for transient failures.
	DefaultMaxRetries = 3
)

// FallbackOllamaModels are tried in order if the primary model is unavailable.
var FallbackOllamaModels = []string{
	"embeddinggemma",
	"mxbai-embed-large",
}

// OllamaConfig configures the Ollama-backed embedder.
type OllamaConfig struct {
	Host            string
	Model           string
	FallbackModels  []string
	BatchSize       int
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	MaxRetries      int
	PoolSize        int
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultOllamaModel,
		FallbackModels: FallbackOllamaModels,
		BatchSize:      DefaultBatchSize,
		Timeout:        DefaultTimeout,
		ConnectTimeout: OllamaConnectTimeout,
		MaxRetries:     DefaultMaxRetries,
		PoolSize:       OllamaPoolSize,
	}
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

type ollamaModelListResponse struct {
	Models []ollamaModelInfo `json:"models"`
}

type ollamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
}
