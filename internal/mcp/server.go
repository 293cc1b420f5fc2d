// Package mcp implements the stdio Model Context Protocol surface: a
// single semantic_search tool (§6) backed by a search.Orchestrator, with
// lazy full-index-build-on-first-query semantics (§5 "Lazy
// initialization").
package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/semcode/semcode-mcp/internal/index"
	"github.com/semcode/semcode-mcp/internal/search"
	"github.com/semcode/semcode-mcp/internal/store"
	"github.com/semcode/semcode-mcp/pkg/version"
)

// ServerName is the MCP implementation name advertised to clients.
const ServerName = "semcode-mcp"

// Server is the stdio MCP server exposing semantic_search.
type Server struct {
	mcp          *sdkmcp.Server
	orchestrator *search.Orchestrator
	store        store.Store
	indexer      *index.Indexer
	indexCfg     *index.Config
	logger       *slog.Logger

	buildMu  sync.Mutex
	building *sync.WaitGroup
	buildErr error
}

// New builds a Server around an already-constructed orchestrator, store
// and indexer. indexCfg is the configuration used for the lazy first-query
// full index build described in §5. logger may be nil, in which case
// slog.Default() is used.
func New(orc *search.Orchestrator, st store.Store, idx *index.Indexer, indexCfg *index.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		orchestrator: orc,
		store:        st,
		indexer:      idx,
		indexCfg:     indexCfg,
		logger:       logger,
	}

	s.mcp = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: ServerName, Version: version.Version},
		nil,
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying SDK server, primarily for tests.
func (s *Server) MCPServer() *sdkmcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.mcp, &sdkmcp.Tool{
		Name: "semantic_search",
		Description: "Search this repository's code by meaning. Given a natural-language " +
			"query, returns the most relevant code spans ranked by dense vector similarity, " +
			"lexical keyword boosting, and optional cross-encoder reranking.",
	}, s.handleSearch)
}

// handleSearch is the semantic_search tool handler. On first call against
// an empty store it triggers (and, for concurrent callers, awaits) a full
// index build before searching (§5).
func (s *Server) handleSearch(ctx context.Context, _ *sdkmcp.CallToolRequest, input SearchInput) (
	*sdkmcp.CallToolResult,
	SearchOutput,
	error,
) {
	requestID := generateRequestID()
	logger := s.logger.With(slog.String("request_id", requestID))

	if input.Query == "" {
		return nil, SearchOutput{}, translateError(fmt.Errorf("query parameter is required"))
	}

	if err := s.ensureIndexed(ctx); err != nil {
		logger.Error("lazy index build failed", slog.String("error", err.Error()))
		return nil, SearchOutput{}, translateError(err)
	}

	req := input.toRequest()
	logger.Info("semantic_search", slog.String("query", req.Query), slog.String("path", req.Path))

	results, err := s.orchestrator.Search(ctx, req)
	if err != nil {
		logger.Error("semantic_search failed", slog.String("error", err.Error()))
		return nil, SearchOutput{}, translateError(err)
	}

	return nil, toOutput(req.Query, results), nil
}

// ensureIndexed implements §5's lazy initialization: the first query that
// finds the store empty triggers a full index build; concurrent queries
// that arrive during that build await the same in-flight future rather
// than starting a second one.
func (s *Server) ensureIndexed(ctx context.Context) error {
	empty, err := s.store.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		return nil
	}
	if s.indexer == nil || s.indexCfg == nil {
		return nil
	}

	s.buildMu.Lock()
	if s.building != nil {
		wg := s.building
		s.buildMu.Unlock()
		wg.Wait()
		return s.buildErr
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	s.building = wg
	s.buildMu.Unlock()

	_, buildErr := s.indexer.Run(ctx, s.indexCfg)

	s.buildMu.Lock()
	s.building = nil
	s.buildErr = buildErr
	s.buildMu.Unlock()
	wg.Done()

	return buildErr
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &sdkmcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("MCP server stopped")
	return nil
}

// Close releases server resources. The store is closed separately by the
// caller that owns it (§5 shutdown: "cancels the watcher, ... then closes
// the store").
func (s *Server) Close() error {
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
