package chunk

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
)

// CodeChunker implements AST-aware chunking using tree-sitter, falling back
// to line-based windows when a file's language is unresolved, the parse
// fails, or the AST yields no semantic matches (§4.3).
type CodeChunker struct {
	parser   *Parser
	registry *LanguageRegistry
	logger   *slog.Logger
}

// NewCodeChunker creates a chunker using the default language registry.
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithRegistry(DefaultRegistry(), slog.Default())
}

// NewCodeChunkerWithRegistry creates a chunker with an explicit registry and logger.
func NewCodeChunkerWithRegistry(registry *LanguageRegistry, logger *slog.Logger) *CodeChunker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CodeChunker{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
		logger:   logger,
	}
}

// Close releases parser resources.
func (c *CodeChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// SupportedExtensions returns every extension the registry resolves.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.registry.SupportedExtensions()
}

// Chunk converts a file into an ordered sequence of chunks (§4.3 steps 1-7).
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := stripBOM(file.Content)
	if len(content) == 0 {
		return []*Chunk{}, nil
	}

	ext := filepath.Ext(file.Path)
	grammarKey, langConfig, ok := c.registry.ResolveExtension(ext)
	if !ok {
		return c.chunkByLines(file.Path, content, strings.TrimPrefix(ext, "."))
	}

	tree, err := c.parser.Parse(ctx, content, grammarKey, langConfig.Name)
	if err != nil {
		c.logger.Warn("parse failed, using fallback chunking",
			slog.String("file", file.Path), slog.String("error", err.Error()))
		return c.chunkByLines(file.Path, content, langConfig.Name)
	}

	matches := c.matchChunkNodes(tree, langConfig)
	if len(matches) == 0 {
		return c.chunkByLines(file.Path, content, langConfig.Name)
	}

	var chunks []*Chunk
	for _, m := range matches {
		chunks = append(chunks, c.buildChunksFromNode(m, tree, file.Path, langConfig)...)
	}

	if len(chunks) == 0 {
		return c.chunkByLines(file.Path, content, langConfig.Name)
	}

	return chunks, nil
}

// nodeMatch pairs a matched chunk node with its immediately preceding
// sibling, needed for docstring extraction.
type nodeMatch struct {
	node        *Node
	prevSibling *Node
}

// matchChunkNodes traverses the AST, recording nodes whose type is in the
// language's chunk node set, depth-limited to MaxTraversalDepth (step 4-5).
// A matched node is not recursed into.
func (c *CodeChunker) matchChunkNodes(tree *Tree, cfg *LanguageConfig) []*nodeMatch {
	chunkTypes := make(map[string]bool, len(cfg.ChunkTypes))
	for _, t := range cfg.ChunkTypes {
		chunkTypes[t] = true
	}

	var matches []*nodeMatch
	var walk func(n *Node, depth int)
	cappedLogged := false
	walk = func(n *Node, depth int) {
		if depth > MaxTraversalDepth {
			if !cappedLogged {
				c.logger.Warn("AST traversal depth cap exceeded, subtree truncated",
					slog.Int("depth", depth))
				cappedLogged = true
			}
			return
		}
		var prev *Node
		for _, child := range n.Children {
			if chunkTypes[child.Type] {
				matches = append(matches, &nodeMatch{node: child, prevSibling: prev})
			} else {
				walk(child, depth+1)
			}
			prev = child
		}
	}
	walk(tree.Root, 0)
	return matches
}

// buildChunksFromNode extracts name/signature/docstring and applies size
// discipline (step 6): skip-too-small, split-if-too-large.
func (c *CodeChunker) buildChunksFromNode(m *nodeMatch, tree *Tree, filePath string, cfg *LanguageConfig) []*Chunk {
	node := m.node
	content := node.GetContent(tree.Source)
	startLine := int(node.StartPoint.Row) + 1
	endLine := int(node.EndPoint.Row) + 1

	if !meetsMinimumSize(content) {
		return nil
	}

	name := extractName(node, tree.Source, cfg)
	signature := extractSignature(content)
	docstring := extractDocstring(m, tree, cfg)

	if len(content) <= SplitTriggerChars {
		return []*Chunk{{
			ID:        deriveChunkID(filePath, startLine, 0, false),
			FilePath:  filePath,
			Content:   content,
			StartLine: startLine,
			EndLine:   endLine,
			Name:      name,
			NodeType:  node.Type,
			Signature: signature,
			Docstring: docstring,
			Language:  cfg.Name,
		}}
	}

	return splitLargeChunk(filePath, content, startLine, name, node.Type, signature, docstring, cfg.Name)
}

// splitLargeChunk splits content exceeding SplitTriggerChars into
// overlapping parts of ~TargetPartChars with ~PartOverlapRatio overlap
// (step 6, "If content exceeds 2000 characters..."). Only the first part
// keeps signature/docstring; every part's name is suffixed " (part i+1)".
func splitLargeChunk(filePath, content string, startLine int, name, nodeType, signature, docstring, language string) []*Chunk {
	lines := strings.Split(content, "\n")
	overlap := int(float64(len(lines)) * PartOverlapRatio)
	if overlap < 1 {
		overlap = 1
	}

	avgLineLen := len(content) / maxInt(len(lines), 1)
	linesPerPart := TargetPartChars / maxInt(avgLineLen, 1)
	if linesPerPart < 1 {
		linesPerPart = 1
	}
	overlapLines := int(float64(linesPerPart) * PartOverlapRatio)
	if overlapLines < 1 {
		overlapLines = 1
	}

	var parts []*Chunk
	partIdx := 0
	for i := 0; i < len(lines); {
		end := minInt(i+linesPerPart, len(lines))
		partContent := strings.Join(lines[i:end], "\n")
		partStartLine := startLine + i
		partEndLine := startLine + end - 1

		partName := name
		if partName != "" {
			partName = partName + " (part " + strconv.Itoa(partIdx+1) + ")"
		}

		chunk := &Chunk{
			ID:        deriveChunkID(filePath, partStartLine, partIdx, false),
			FilePath:  filePath,
			Content:   partContent,
			StartLine: partStartLine,
			EndLine:   partEndLine,
			Name:      partName,
			NodeType:  nodeType,
			Language:  language,
		}
		if partIdx == 0 {
			chunk.Signature = signature
			chunk.Docstring = docstring
		}
		parts = append(parts, chunk)
		partIdx++

		if end >= len(lines) {
			break
		}
		i = end - overlapLines
		if i < 0 {
			i = end
		}
	}
	_ = overlap
	return parts
}

// chunkByLines is the fallback: 50-line windows with 5-line overlap,
// skipping empty windows (§4.3 "Fallback chunking").
func (c *CodeChunker) chunkByLines(filePath string, content []byte, language string) ([]*Chunk, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return []*Chunk{}, nil
	}
	if language == "" {
		language = "unknown"
	}

	lines := strings.Split(text, "\n")
	var chunks []*Chunk
	idx := 0

	for i := 0; i < len(lines); {
		end := minInt(i+FallbackWindowLines, len(lines))
		windowLines := lines[i:end]
		if isEmptyWindow(windowLines) {
			if end >= len(lines) {
				break
			}
			i = end - FallbackOverlapLines
			if i < 0 {
				i = end
			}
			continue
		}

		startLine := i + 1
		endLine := end

		chunks = append(chunks, &Chunk{
			ID:        deriveChunkID(filePath, startLine, idx, true),
			FilePath:  filePath,
			Content:   strings.Join(windowLines, "\n"),
			StartLine: startLine,
			EndLine:   endLine,
			NodeType:  NodeTypeFallback,
			Language:  language,
		})
		idx++

		if end >= len(lines) {
			break
		}
		i = end - FallbackOverlapLines
		if i < 0 {
			i = end
		}
	}

	return chunks, nil
}

func isEmptyWindow(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

// meetsMinimumSize enforces the 50-char / 2-non-blank-line floor (step 6).
func meetsMinimumSize(content string) bool {
	if len(content) < MinChunkChars {
		return false
	}
	nonBlank := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			nonBlank++
			if nonBlank >= MinChunkLines {
				return true
			}
		}
	}
	return false
}

// deriveChunkID builds the id per §4.2: normalize(file_path) + "_L" +
// start_line, with "_p<i>" for split parts or "_fallback<i>" for
// line-based fallback chunks.
func deriveChunkID(filePath string, startLine, idx int, fallback bool) string {
	base := Normalize(filePath) + "_L" + strconv.Itoa(startLine)
	switch {
	case fallback:
		return base + "_fallback" + strconv.Itoa(idx)
	case idx > 0:
		return base + "_p" + strconv.Itoa(idx)
	default:
		return base
	}
}

func stripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
