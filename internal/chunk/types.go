package chunk

import (
	"context"
	"regexp"
)

// Size discipline constants (§4.3).
const (
	MinChunkChars     = 50
	MinChunkLines     = 2
	SplitTriggerChars = 2000
	TargetPartChars   = 1500
	PartOverlapRatio  = 0.15

	FallbackWindowLines  = 50
	FallbackOverlapLines = 5

	MaxTraversalDepth = 100
)

// NodeTypeFallback marks a chunk produced by the line-based fallback chunker.
const NodeTypeFallback = "fallback_chunk"

// idUnsafeChars is collapsed to "_" by normalize. Matches the filter
// builder's own sanitization so that path-prefix filters admit chunk ids
// derived from the same file path (invariant: byte-identical normalization).
var idUnsafeChars = regexp.MustCompile(`[/\\. +()@:;']`)

// idNonAllowed catches anything normalize's explicit character class missed.
var idNonAllowed = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Normalize collapses path separators, dots, and other unsafe characters to
// "_", producing the id-safe form used by both chunk id derivation (§4.2)
// and the filter builder's path-prefix predicate (§4.1).
func Normalize(s string) string {
	s = idUnsafeChars.ReplaceAllString(s, "_")
	s = idNonAllowed.ReplaceAllString(s, "_")
	return s
}

// Chunk is the atomic indexed unit (§3).
type Chunk struct {
	ID        string
	FilePath  string
	Content   string
	StartLine int
	EndLine   int
	Name      string
	NodeType  string
	Signature string
	Docstring string
	Language  string
}

// FileInput is the input to a Chunker.
type FileInput struct {
	Path     string
	Content  []byte
	Language string
}

// Chunker splits a file into an ordered sequence of chunks.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
	SupportedExtensions() []string
}

// Tree is a parsed AST, independent of the tree-sitter binding's own types.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is a node in the AST.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point is a position in the source.
type Point struct {
	Row    uint32
	Column uint32
}

// LanguageConfig holds the chunk/name/doc node sets for one language (§6).
type LanguageConfig struct {
	Name       string
	Extensions []string

	ChunkTypes []string
	NameTypes  []string
	DocTypes   []string
}

// GetContent returns the source slice for a node.
func (n *Node) GetContent(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType finds the first direct child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// FindChildrenByType finds all direct children with the given type.
func (n *Node) FindChildrenByType(nodeType string) []*Node {
	var result []*Node
	for _, child := range n.Children {
		if child.Type == nodeType {
			result = append(result, child)
		}
	}
	return result
}

// Walk traverses the tree depth-first, calling fn for each node. fn returns
// false to stop descending into that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
