package embed

import "context"

// FactoryConfig selects and configures an Embedder implementation.
type FactoryConfig struct {
	// Offline selects StaticEmbedder instead of OllamaEmbedder.
	Offline bool
	Ollama  OllamaConfig
}

// New constructs the configured Embedder.
func New(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	if cfg.Offline {
		return NewStaticEmbedder(), nil
	}
	return NewOllamaEmbedder(ctx, cfg.Ollama)
}
