package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// weights for hash-based vector construction.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

var programmingStopWords = map[string]bool{
	"func": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "int": true, "string": true, "bool": true,
	"void": true, "true": true, "false": true, "nil": true,
	"null": true, "this": true, "self": true, "new": true,
}

// StaticEmbedder produces deterministic, dimension-correct embeddings from a
// hash of tokenized text, with no network or model dependency. It backs
// --offline mode and fake-free unit tests of every component downstream of
// Embedder.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) embed(prefix, text string) (Result, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return Result{}, fmt.Errorf("embedder is closed")
	}

	if strings.TrimSpace(text) == "" {
		return Result{Vector: make([]float32, Dimensions)}, nil
	}
	prefixed := truncate(prefix + text)
	trimmed := strings.TrimSpace(prefixed)
	return Result{Vector: normalizeVector(generateVector(trimmed)), TokenCount: estimateTokens(prefixed)}, nil
}

// EmbedDocument implements Embedder.
func (e *StaticEmbedder) EmbedDocument(_ context.Context, text string) (Result, error) {
	return e.embed(documentPrefix, text)
}

// EmbedQuery implements Embedder.
func (e *StaticEmbedder) EmbedQuery(_ context.Context, text string) (Result, error) {
	return e.embed(queryPrefix, text)
}

// EmbedBatch implements Embedder. Static embedding never fails per-item.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string, _ int) (BatchResult, error) {
	if len(texts) == 0 {
		return BatchResult{}, nil
	}
	results := make([]Result, len(texts))
	for i, text := range texts {
		res, err := e.EmbedDocument(ctx, text)
		if err != nil {
			return BatchResult{}, err
		}
		results[i] = res
	}
	return BatchResult{Results: results}, nil
}

// Dimensions implements Embedder.
func (e *StaticEmbedder) Dimensions() int { return Dimensions }

// ModelName implements Embedder.
func (e *StaticEmbedder) ModelName() string { return "static768" }

// Close implements Embedder.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func generateVector(text string) []float32 {
	vector := make([]float32, Dimensions)

	for _, token := range tokenize(text) {
		vector[hashToIndex(token, Dimensions)] += tokenWeight
	}

	normalized := normalizeForNgrams(text)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, Dimensions)] += ngramWeight
	}

	return vector
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if lower != "" && !programmingStopWords[lower] {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func normalizeForNgrams(text string) string {
	var result strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}
