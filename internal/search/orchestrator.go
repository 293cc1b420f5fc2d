package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/semcode/semcode-mcp/internal/embed"
	"github.com/semcode/semcode-mcp/internal/filter"
	"github.com/semcode/semcode-mcp/internal/store"
)

// Orchestrator implements the hybrid search pipeline described in §4.7:
// embed the query, fetch K candidates from the vector store (K = limit,
// or limit * candidateMultiplier when reranking is requested), apply a
// lexical keyword boost, optionally
// rerank with a cross-encoder, then return the top-K scored results.
type Orchestrator struct {
	store    store.Store
	embedder embed.Embedder
	reranker Reranker
	root     string
	logger   *slog.Logger
}

// New builds an Orchestrator from its collaborators. reranker may be nil,
// in which case reranking is always skipped regardless of
// Request.UseReranking. root is the configured repository root that every
// Request.Path is validated against (§6 "Path validation"). logger may be
// nil, in which case slog.Default() is used.
func New(st store.Store, embedder embed.Embedder, reranker Reranker, root string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: st, embedder: embedder, reranker: reranker, root: root, logger: logger}
}

// Search runs the pipeline for a single request.
//
// Open Question 2 (SPEC_FULL.md): when the store is empty, this returns
// []Result{} without calling Embedder.EmbedQuery at all — the empty check
// happens strictly before the embed step, so an expensive model call is
// never made against a result the caller already knows is empty.
func (o *Orchestrator) Search(ctx context.Context, req Request) ([]Result, error) {
	req = req.applyDefaults()

	if _, err := filter.ValidateScope(o.root, req.Path); err != nil {
		return nil, err
	}

	empty, err := o.store.IsEmpty(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		return []Result{}, nil
	}

	queryVec, err := o.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	k := req.Limit
	if req.UseReranking {
		k = req.Limit * req.CandidateMultiplier
	}

	pred, err := filter.Build(filter.Input{Path: req.Path, FilePattern: req.FilePattern})
	if err != nil {
		return nil, err
	}

	candidates, err := o.store.VectorSearch(ctx, queryVec.Vector, k, pred)
	if err != nil {
		return nil, err
	}

	keywords := tokenize(req.Query)
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		boost := keywordBoost(keywords, c.Record.Content, c.Record.Name, c.Record.Signature)
		combined := c.Score + boost
		if combined > 1.0 {
			combined = 1.0
		}
		results[i] = Result{
			FilePath:      c.Record.FilePath,
			StartLine:     c.Record.StartLine,
			EndLine:       c.Record.EndLine,
			Name:          c.Record.Name,
			NodeType:      c.Record.NodeType,
			Signature:     c.Record.Signature,
			Content:       c.Record.Content,
			CombinedScore: combined,
			VectorScore:   c.Score,
			KeywordScore:  combined - c.Score,
		}
	}

	if req.UseReranking && o.reranker != nil && len(results) > req.Limit {
		o.rerank(ctx, req.Query, results)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// rerankPassageChars bounds the passage length passed to Reranker.Score
// (§6: "passage truncated to 512 characters by caller").
const rerankPassageChars = 512

// rerank replaces each result's CombinedScore with the cross-encoder's
// relevance probability (§4.7 step 7). If the reranker call fails for any
// candidate, the keyword-boosted scores computed so far are kept instead
// of failing the whole request.
func (o *Orchestrator) rerank(ctx context.Context, query string, results []Result) {
	for i := range results {
		passage := results[i].Content
		if len(passage) > rerankPassageChars {
			passage = passage[:rerankPassageChars]
		}
		score, err := o.reranker.Score(ctx, query, passage)
		if err != nil {
			o.logger.Warn("rerank call failed, falling back to keyword-boosted score",
				slog.String("file", results[i].FilePath),
				slog.String("error", err.Error()))
			continue
		}
		if score > 1.0 {
			score = 1.0
		}
		if score < 0 {
			score = 0
		}
		results[i].CombinedScore = score
	}
}
