package chunk

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageRegistry holds the chunk/name/doc node tables (§6) and the
// tree-sitter grammar for each supported language.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry builds the registry for the minimum required
// language table: typescript, javascript, python, go, rust.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	r.registerRust()

	return r
}

// GetByExtension returns the language configuration for a file extension,
// e.g. ".ts". TSX/JSX extensions resolve to their own LanguageConfig but
// its Name is already normalized to the base language (§4.3: "tsx/jsx
// normalize to their base language in the output").
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	langName, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}

	config, ok := r.configs[langName]
	return config, ok
}

// ResolveExtension returns the grammar key (the tree-sitter grammar to
// parse with) and the LanguageConfig (whose Name is already normalized to
// the base language, e.g. "typescript" for both .ts and .tsx) for a file
// extension.
func (r *LanguageRegistry) ResolveExtension(ext string) (grammarKey string, config *LanguageConfig, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	grammarKey, ok = r.extToLang[ext]
	if !ok {
		return "", nil, false
	}
	config, ok = r.configs[grammarKey]
	return grammarKey, config, ok
}

// GetByName returns the language configuration by canonical name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// GetTreeSitterLanguage returns the tree-sitter grammar registered for an
// extension-resolved grammar key (distinct from the normalized language
// name for tsx/jsx, which share a grammar with their base language).
func (r *LanguageRegistry) GetTreeSitterLanguage(grammarKey string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lang, ok := r.tsLanguages[grammarKey]
	return lang, ok
}

// SupportedExtensions returns every registered file extension.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) registerLanguage(grammarKey string, config *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[grammarKey] = config
	r.tsLanguages[grammarKey] = tsLang

	for _, ext := range config.Extensions {
		r.extToLang[ext] = grammarKey
	}
}

func (r *LanguageRegistry) registerGo() {
	config := &LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		ChunkTypes: []string{
			"function_declaration",
			"method_declaration",
			"type_declaration",
		},
		NameTypes: []string{"identifier", "field_identifier"},
		DocTypes:  []string{"comment"},
	}
	r.registerLanguage("go", config, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	tsConfig := &LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".ts"},
		ChunkTypes: []string{
			"function_declaration",
			"method_definition",
			"class_declaration",
			"interface_declaration",
			"type_alias_declaration",
			"enum_declaration",
			"export_statement",
			"lexical_declaration",
			"variable_declaration",
		},
		NameTypes: []string{"identifier", "property_identifier"},
		DocTypes:  []string{"comment"},
	}
	r.registerLanguage("typescript", tsConfig, typescript.GetLanguage())

	// TSX normalizes to "typescript" in the output (§4.3) but parses with
	// its own grammar, so it gets its own grammar key and a config whose
	// Name is the base language.
	tsxConfig := &LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".tsx"},
		ChunkTypes: tsConfig.ChunkTypes,
		NameTypes:  tsConfig.NameTypes,
		DocTypes:   tsConfig.DocTypes,
	}
	r.registerLanguage("tsx", tsxConfig, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	jsConfig := &LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs"},
		ChunkTypes: []string{
			"function_declaration",
			"method_definition",
			"class_declaration",
			"export_statement",
			"lexical_declaration",
			"variable_declaration",
		},
		NameTypes: []string{"identifier", "property_identifier"},
		DocTypes:  []string{"comment"},
	}
	r.registerLanguage("javascript", jsConfig, javascript.GetLanguage())

	jsxConfig := &LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".jsx"},
		ChunkTypes: jsConfig.ChunkTypes,
		NameTypes:  jsConfig.NameTypes,
		DocTypes:   jsConfig.DocTypes,
	}
	r.registerLanguage("jsx", jsxConfig, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	config := &LanguageConfig{
		Name:       "python",
		Extensions: []string{".py", ".pyw"},
		ChunkTypes: []string{
			"function_definition",
			"class_definition",
			"decorated_definition",
		},
		NameTypes: []string{"identifier"},
		DocTypes:  []string{"string", "comment"},
	}
	r.registerLanguage("python", config, python.GetLanguage())
}

func (r *LanguageRegistry) registerRust() {
	config := &LanguageConfig{
		Name:       "rust",
		Extensions: []string{".rs"},
		ChunkTypes: []string{
			"function_item",
			"impl_item",
			"struct_item",
			"enum_item",
			"trait_item",
			"mod_item",
		},
		NameTypes: []string{"identifier"},
		DocTypes:  []string{"line_comment", "block_comment"},
	}
	r.registerLanguage("rust", config, rust.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
