package filter

import (
	"path/filepath"
	"strings"

	"github.com/semcode/semcode-mcp/internal/errs"
)

// ValidateScope resolves path against root and rejects it with PathTraversal
// unless the result is root itself or a descendant of it (§6 "Path
// validation").
func ValidateScope(root, path string) (string, error) {
	if path == "" {
		return "", nil
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errs.PathTraversal("cannot resolve configured root").WithDetail("root", root)
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(absRoot, resolved)
	}
	resolved = filepath.Clean(resolved)
	absRoot = filepath.Clean(absRoot)

	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", errs.PathTraversal("path escapes the configured root").
			WithDetail("root", absRoot).
			WithDetail("path", path)
	}

	return resolved, nil
}
