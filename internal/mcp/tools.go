package mcp

import "github.com/semcode/semcode-mcp/internal/search"

// SearchInput is the input schema for the semantic_search tool (§6).
type SearchInput struct {
	Query               string `json:"query" jsonschema:"natural-language search query, required"`
	Path                string `json:"path,omitempty" jsonschema:"directory scope to restrict results to"`
	Limit               int    `json:"limit,omitempty" jsonschema:"maximum number of results, 1-50, default 10"`
	FilePattern         string `json:"file_pattern,omitempty" jsonschema:"glob to restrict results to, e.g. *.ts"`
	UseReranking        *bool  `json:"use_reranking,omitempty" jsonschema:"whether to apply cross-encoder reranking, default true"`
	CandidateMultiplier int    `json:"candidate_multiplier,omitempty" jsonschema:"candidate over-recall multiplier, 1-20, default 5"`
}

// toRequest converts the wire input into a search.Request, tracking
// whether use_reranking was explicitly supplied so defaulting can
// distinguish "omitted" from "false".
func (in SearchInput) toRequest() search.Request {
	req := search.Request{
		Query:               in.Query,
		Path:                in.Path,
		Limit:               in.Limit,
		FilePattern:         in.FilePattern,
		CandidateMultiplier: in.CandidateMultiplier,
	}
	if in.UseReranking != nil {
		req.UseReranking = *in.UseReranking
		req.UseRerankingSet = true
	}
	return req
}

// SearchOutput is the output schema for the semantic_search tool (§6).
type SearchOutput struct {
	Results      []SearchResultOutput `json:"results"`
	TotalResults int                  `json:"totalResults"`
	Query        string               `json:"query"`
}

// SearchResultOutput is a single result row (§6 response shape).
type SearchResultOutput struct {
	File      string  `json:"file"`
	StartLine int     `json:"startLine"`
	EndLine   int     `json:"endLine"`
	Name      *string `json:"name"`
	NodeType  string  `json:"nodeType"`
	Score     float64 `json:"score"`
	Content   string  `json:"content"`
	Signature *string `json:"signature"`
}

func toOutput(query string, results []search.Result) SearchOutput {
	out := SearchOutput{
		Results:      make([]SearchResultOutput, 0, len(results)),
		TotalResults: len(results),
		Query:        query,
	}
	for _, r := range results {
		row := SearchResultOutput{
			File:      r.FilePath,
			StartLine: r.StartLine,
			EndLine:   r.EndLine,
			NodeType:  r.NodeType,
			Score:     r.CombinedScore,
			Content:   r.Content,
		}
		if r.Name != "" {
			name := r.Name
			row.Name = &name
		}
		if r.Signature != "" {
			sig := r.Signature
			row.Signature = &sig
		}
		out.Results = append(out.Results, row)
	}
	return out
}
