package mcp

import (
	"errors"

	"github.com/semcode/semcode-mcp/internal/errs"
)

// ToolError wraps a core error with the stable textual message the server
// translates every exception into before it reaches the MCP client (§7
// "The server translates all exceptions into a tool-call error response
// with a stable textual message").
type ToolError struct {
	Message string
	Code    string
	cause   error
}

func (e *ToolError) Error() string { return e.Message }
func (e *ToolError) Unwrap() error { return e.cause }

// translateError converts any error surfaced by the orchestrator, store,
// indexer or filter builder into a ToolError with a stable message. A
// *errs.CoreError carries its own code and message; anything else is
// wrapped as an internal error.
func translateError(err error) *ToolError {
	if err == nil {
		return nil
	}
	var ce *errs.CoreError
	if errors.As(err, &ce) {
		return &ToolError{Message: ce.Message, Code: ce.Code, cause: err}
	}
	return &ToolError{Message: err.Error(), Code: errs.ErrCodeInternal, cause: err}
}
