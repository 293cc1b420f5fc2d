package errs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-friendly error message.
func FormatForUser(err error) string {
	if err == nil {
		return ""
	}

	ce, ok := err.(*CoreError)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(ce.Message)
	sb.WriteString("\n")

	if ce.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(ce.Suggestion)
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", ce.Code))

	return sb.String()
}

// FormatForCLI formats an error for CLI output in a concise, terminal-friendly form.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ce, ok := err.(*CoreError)
	if !ok {
		ce = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ce.Message))

	if ce.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ce.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", ce.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns a JSON representation of the error, suitable for MCP
// tool error payloads and structured logging sinks.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ce, ok := err.(*CoreError)
	if !ok {
		ce = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ce.Code,
		Kind:       string(ce.Kind),
		Message:    ce.Message,
		Category:   string(ce.Category),
		Severity:   string(ce.Severity),
		Details:    ce.Details,
		Suggestion: ce.Suggestion,
	}

	if ce.Cause != nil {
		je.Cause = ce.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog formats an error as key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ce, ok := err.(*CoreError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": ce.Code,
		"error_kind": string(ce.Kind),
		"message":    ce.Message,
		"category":   string(ce.Category),
		"severity":   string(ce.Severity),
	}

	if ce.Cause != nil {
		result["cause"] = ce.Cause.Error()
	}

	if ce.Suggestion != "" {
		result["suggestion"] = ce.Suggestion
	}

	for k, v := range ce.Details {
		result["detail_"+k] = v
	}

	return result
}
