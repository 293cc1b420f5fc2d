package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// OllamaEmbedder embeds text via Ollama's HTTP /api/embed endpoint.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an embedder against the given host, discovering
// an available model among cfg.Model and cfg.FallbackModels.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.FallbackModels == nil {
		cfg.FallbackModels = FallbackOllamaModels
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = OllamaConnectTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = OllamaPoolSize
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
	}
	client := &http.Client{Transport: transport}

	e := &OllamaEmbedder{client: client, transport: transport, config: cfg, modelName: cfg.Model}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
		modelName, err := e.findAvailableModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, fmt.Errorf("failed to connect to ollama or find model: %w", err)
		}
		e.modelName = modelName
	}

	return e, nil
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]ollamaModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Models, nil
}

func (e *OllamaEmbedder) findAvailableModel(ctx context.Context) (string, error) {
	models, err := e.listModels(ctx)
	if err != nil {
		return "", err
	}

	available := make(map[string]string)
	for _, m := range models {
		name := strings.ToLower(m.Name)
		available[name] = m.Name
		base := strings.Split(name, ":")[0]
		if _, exists := available[base]; !exists {
			available[base] = m.Name
		}
	}

	candidates := append([]string{e.config.Model}, e.config.FallbackModels...)
	for _, candidate := range candidates {
		name := strings.ToLower(candidate)
		if actual, ok := available[name]; ok {
			return actual, nil
		}
		base := strings.Split(name, ":")[0]
		if actual, ok := available[base]; ok {
			return actual, nil
		}
	}
	return "", fmt.Errorf("no embedding model available (tried %v)", candidates)
}

func (e *OllamaEmbedder) embed(ctx context.Context, prefix, text string) (Result, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return Result{}, fmt.Errorf("embedder is closed")
	}

	prefixed := truncate(prefix + text)
	var vectors [][]float32
	err := withRetry(ctx, e.config.MaxRetries, func(ctx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
		v, err := e.doEmbed(timeoutCtx, []string{prefixed})
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	if len(vectors) == 0 {
		return Result{}, fmt.Errorf("no embedding returned")
	}
	return Result{Vector: vectors[0], TokenCount: estimateTokens(prefixed)}, nil
}

// EmbedDocument implements Embedder.
func (e *OllamaEmbedder) EmbedDocument(ctx context.Context, text string) (Result, error) {
	return e.embed(ctx, documentPrefix, text)
}

// EmbedQuery implements Embedder.
func (e *OllamaEmbedder) EmbedQuery(ctx context.Context, text string) (Result, error) {
	return e.embed(ctx, queryPrefix, text)
}

// EmbedBatch dispatches each batch of batchSize items concurrently via
// errgroup, matching §5's "items of a single batch ... dispatched
// concurrently ... collected as independently-settled results". A single
// item's failure degrades it to a zero vector rather than failing the
// group.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string, batchSize int) (BatchResult, error) {
	if batchSize <= 0 {
		batchSize = e.config.BatchSize
	}
	if len(texts) == 0 {
		return BatchResult{}, nil
	}

	results := make([]Result, len(texts))
	var failedMu sync.Mutex
	var failed []int

	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				res, err := e.embed(gctx, documentPrefix, texts[i])
				if err != nil {
					failedMu.Lock()
					failed = append(failed, i)
					failedMu.Unlock()
					results[i] = Result{Vector: make([]float32, Dimensions)}
					return nil // sibling items must not be cancelled by this failure
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return BatchResult{}, err
		}

		select {
		case <-ctx.Done():
			return BatchResult{}, ctx.Err()
		default:
		}
	}

	return BatchResult{Results: results, FailedIndices: failed}, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResult ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResult); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	embeddings := make([][]float32, len(apiResult.Embeddings))
	for i, emb := range apiResult.Embeddings {
		embeddings[i] = normalizeVector(toFloat32(emb))
	}
	return embeddings, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Dimensions implements Embedder.
func (e *OllamaEmbedder) Dimensions() int { return Dimensions }

// ModelName implements Embedder.
func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Close implements Embedder.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
