// Package filter sanitizes user-supplied directory/glob filters into
// store-level predicates, eliminating SQL injection by whitelisting the
// characters interpolated into the predicate string (§4.1).
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/semcode/semcode-mcp/internal/chunk"
	"github.com/semcode/semcode-mcp/internal/errs"
)

// MaxPredicateLength bounds the final combined predicate string.
const MaxPredicateLength = 500

var (
	tokenWhitelist  = regexp.MustCompile(`^[A-Za-z0-9_\-%]+$`)
	bareExtension   = regexp.MustCompile(`^\*\.[a-z]+$`)
	globReplacer    = strings.NewReplacer("**", "%", "*", "%", "?", "_")
	filterUnsafeSub = regexp.MustCompile(`[^A-Za-z0-9_%-]`)
)

// Input is the user-supplied filter request.
type Input struct {
	Path        string
	FilePattern string
}

// Build produces a single predicate string for the store's query dialect, or
// "" ("no filter") when both fields of in are empty. It never panics on
// arbitrary input; every interpolated token is collapsed to the whitelist
// before being combined.
func Build(in Input) (string, error) {
	var clauses []string

	if in.Path != "" {
		sanitized := chunk.Normalize(in.Path)
		if err := validateToken(sanitized); err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("id LIKE '%s%%'", sanitized))
	}

	if in.FilePattern != "" {
		clause, err := filePatternClause(in.FilePattern)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}

	predicate := strings.Join(clauses, " AND ")
	if len(predicate) > MaxPredicateLength {
		return "", errs.InvalidFilter("filter predicate exceeds maximum length", nil).
			WithDetail("length", strconv.Itoa(len(predicate))).
			WithDetail("max", strconv.Itoa(MaxPredicateLength))
	}

	return predicate, nil
}

// filePatternClause implements steps 2-3: a bare-extension glob mapping to a
// known language emits an equality clause; everything else converts glob
// syntax to LIKE syntax and emits a suffix match on id.
func filePatternClause(pattern string) (string, error) {
	if bareExtension.MatchString(pattern) {
		ext := strings.TrimPrefix(pattern, "*.")
		if _, cfg, ok := chunk.DefaultRegistry().ResolveExtension("." + ext); ok {
			if err := validateToken(cfg.Name); err != nil {
				return "", err
			}
			return fmt.Sprintf("language = '%s'", cfg.Name), nil
		}
	}

	sanitized := filterUnsafeSub.ReplaceAllString(globReplacer.Replace(pattern), "_")
	if err := validateToken(sanitized); err != nil {
		return "", err
	}
	return fmt.Sprintf("id LIKE '%%%s'", sanitized), nil
}

// validateToken enforces the whitelist a single interpolated token must
// satisfy before it is embedded in the predicate. Failing this is always a
// bug in the collapsing logic above, not a property of user input, since
// every construction path above only ever emits whitelisted characters.
func validateToken(token string) error {
	if token == "" {
		return nil
	}
	if !tokenWhitelist.MatchString(token) {
		return errs.InvalidFilter("sanitized filter token contains disallowed characters", nil).
			WithDetail("token", token)
	}
	return nil
}
