package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter for AST parsing
type Parser struct {
	parser   *sitter.Parser
	registry *LanguageRegistry
}

// NewParser creates a new parser with default language registry
func NewParser() *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: DefaultRegistry(),
	}
}

// NewParserWithRegistry creates a new parser with a custom language registry
func NewParserWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Parse parses source code with the grammar registered under grammarKey
// (e.g. "tsx", distinct from the output language name "typescript") and
// returns the AST tagged with outputLanguage.
func (p *Parser) Parse(ctx context.Context, source []byte, grammarKey, outputLanguage string) (*Tree, error) {
	// Get tree-sitter language
	tsLang, ok := p.registry.GetTreeSitterLanguage(grammarKey)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", grammarKey)
	}

	// Set language (smacker bindings don't return error)
	p.parser.SetLanguage(tsLang)

	// Parse the source (smacker bindings: Parse(oldTree, source))
	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("failed to parse source: nil tree")
	}

	// Convert tree-sitter tree to our tree structure
	root := convertNode(tsTree.RootNode(), source)

	return &Tree{
		Root:     root,
		Source:   source,
		Language: outputLanguage,
	}, nil
}

// Close releases parser resources
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// convertNode converts a tree-sitter node to our Node type
func convertNode(tsNode *sitter.Node, source []byte) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}

	// Convert children
	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		child := tsNode.Child(int(i))
		if child != nil {
			node.Children = append(node.Children, convertNode(child, source))
		}
	}

	return node
}

// FindAllByType recursively finds all nodes with the given type. Nothing in
// the module calls it; the chunker itself only needs shallow lookups (see
// types.go).
func (n *Node) FindAllByType(nodeType string) []*Node {
	var result []*Node

	if n.Type == nodeType {
		result = append(result, n)
	}

	for _, child := range n.Children {
		result = append(result, child.FindAllByType(nodeType)...)
	}

	return result
}
