// Package embed defines the embedding collaborator contract (§6) and two
// implementations: a network-backed Ollama embedder and a deterministic
// offline fallback used for tests and --offline mode.
package embed

import "context"

// Dimensions is the fixed embedding width every Embedder implementation
// must produce (invariant 3: vector.length == 768).
const Dimensions = 768

// DefaultBatchSize is the batch size embed_batch dispatches concurrently
// within (§5 Parallelism: "items of a single batch of size <= 32").
const DefaultBatchSize = 32

// MaxInputChars bounds embed_document/embed_query input (~4 chars/token * 8192 tokens).
const MaxInputChars = 4 * 8192

const (
	documentPrefix = "search_document: "
	queryPrefix    = "search_query: "
)

// Result is the outcome of embedding a single text.
type Result struct {
	Vector     []float32
	TokenCount int
}

// BatchResult is the outcome of embed_batch: one Result per input text, plus
// the indices (if any) that failed and were degraded to a zero-vector
// placeholder rather than failing the whole batch.
type BatchResult struct {
	Results       []Result
	FailedIndices []int
}

// Embedder generates vector embeddings for documents and queries (§6).
// embed_document and embed_query use distinct instruction prefixes so the
// same model can discriminate corpus text from search intent.
type Embedder interface {
	// EmbedDocument prepends "search_document: ", truncates to
	// MaxInputChars, and L2-normalizes the resulting vector.
	EmbedDocument(ctx context.Context, text string) (Result, error)

	// EmbedQuery prepends "search_query: " and otherwise behaves like
	// EmbedDocument.
	EmbedQuery(ctx context.Context, text string) (Result, error)

	// EmbedBatch embeds texts concurrently in batches of batchSize (0
	// defaults to DefaultBatchSize). A single item's failure degrades that
	// item to a zero vector and is reported via BatchResult.FailedIndices;
	// it does not fail the batch, even when every item fails (e.g. the
	// backend is unreachable). An error is returned when ctx is cancelled.
	EmbedBatch(ctx context.Context, texts []string, batchSize int) (BatchResult, error)

	// Dimensions returns the embedding width (always Dimensions for a
	// correctly configured implementation).
	Dimensions() int

	// ModelName identifies the backing model for logging and index metadata.
	ModelName() string

	// Close releases resources (HTTP connections, etc).
	Close() error
}

func truncate(text string) string {
	if len(text) <= MaxInputChars {
		return text
	}
	return text[:MaxInputChars]
}

// estimateTokens is a coarse token-count estimate (~4 chars/token), used
// only for Result.TokenCount reporting, not for truncation decisions beyond
// MaxInputChars.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
