// Package search implements the hybrid search orchestrator (§4.7): embed
// the query, over-recall candidates from the vector store, apply a
// lexical keyword boost, optionally rerank with a cross-encoder, and
// return the top-K scored results.
package search

import "context"

// DefaultLimit is the result cap applied when a Request doesn't set one.
const DefaultLimit = 10

// MaxLimit is the upper bound accepted for Request.Limit (§6: "1..50").
const MaxLimit = 50

// DefaultCandidateMultiplier is the default K multiplier (§6: "default 5").
const DefaultCandidateMultiplier = 5

// MaxCandidateMultiplier is the upper bound accepted for
// Request.CandidateMultiplier (§6: "1..20").
const MaxCandidateMultiplier = 20

// Request is a single semantic_search invocation (§6 input schema).
type Request struct {
	Query               string
	Path                string
	Limit               int
	FilePattern         string
	UseReranking        bool
	UseRerankingSet     bool
	CandidateMultiplier int
}

// Result is a single ranked chunk returned to the caller (§6 response
// shape plus the score breakdown §4.7 step 8 requires).
type Result struct {
	FilePath      string
	StartLine     int
	EndLine       int
	Name          string
	NodeType      string
	Signature     string
	Content       string
	CombinedScore float64
	VectorScore   float64
	KeywordScore  float64
}

// Reranker scores a (query, passage) pair with a cross-encoder, returning
// a relevance probability in [0, 1] (§6 "Reranker.score").
type Reranker interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}

// applyDefaults fills in the zero-value defaults §6 specifies and clamps
// out-of-range values rather than rejecting the request.
func (r Request) applyDefaults() Request {
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Limit > MaxLimit {
		r.Limit = MaxLimit
	}
	if r.CandidateMultiplier <= 0 {
		r.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if r.CandidateMultiplier > MaxCandidateMultiplier {
		r.CandidateMultiplier = MaxCandidateMultiplier
	}
	if !r.UseRerankingSet {
		r.UseReranking = true
	}
	return r
}
