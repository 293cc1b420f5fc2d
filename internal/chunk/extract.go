package chunk

import "strings"

// extractName resolves a chunk's symbol name: a shallow child of a
// name-node type; for variable/lexical declarations it looks into the
// declarator; for export declarations it recurses once (§4.3 step 6).
func extractName(n *Node, source []byte, cfg *LanguageConfig) string {
	nameTypes := make(map[string]bool, len(cfg.NameTypes))
	for _, t := range cfg.NameTypes {
		nameTypes[t] = true
	}

	switch n.Type {
	case "lexical_declaration", "variable_declaration":
		for _, child := range n.Children {
			if child.Type == "variable_declarator" {
				if name := shallowName(child, source, nameTypes); name != "" {
					return name
				}
			}
		}
	case "export_statement":
		for _, child := range n.Children {
			if name := shallowName(child, source, nameTypes); name != "" {
				return name
			}
		}
	}

	return shallowName(n, source, nameTypes)
}

// shallowName returns the text of the first direct child whose type is a
// name-node type for this language.
func shallowName(n *Node, source []byte, nameTypes map[string]bool) string {
	for _, child := range n.Children {
		if nameTypes[child.Type] {
			return child.GetContent(source)
		}
	}
	return ""
}

// extractSignature takes the node's first line; if it lacks "{" or ":", it
// concatenates up to 4 following lines until one is found, then truncates
// at "{" (§4.3 step 6).
func extractSignature(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 {
		return ""
	}

	sig := lines[0]
	limit := minInt(5, len(lines))
	for i := 1; i < limit && !strings.ContainsAny(sig, "{:"); i++ {
		sig += "\n" + lines[i]
	}

	if idx := strings.Index(sig, "{"); idx >= 0 {
		sig = sig[:idx]
	}

	return strings.TrimSpace(sig)
}

// extractDocstring finds the immediately preceding sibling of a doc-comment
// type; for Python function/class definitions it also inspects the first
// statement of the body for a string literal (§4.3 step 6).
func extractDocstring(m *nodeMatch, tree *Tree, cfg *LanguageConfig) string {
	docTypes := make(map[string]bool, len(cfg.DocTypes))
	for _, t := range cfg.DocTypes {
		docTypes[t] = true
	}

	if m.prevSibling != nil && docTypes[m.prevSibling.Type] {
		return m.prevSibling.GetContent(tree.Source)
	}

	if cfg.Name == "python" && (m.node.Type == "function_definition" || m.node.Type == "class_definition" || m.node.Type == "decorated_definition") {
		if doc := pythonBodyDocstring(m.node, tree.Source); doc != "" {
			return doc
		}
	}

	return ""
}

// pythonBodyDocstring inspects the first statement of a def/class body for
// a string-literal expression statement.
func pythonBodyDocstring(n *Node, source []byte) string {
	block := n.FindChildByType("block")
	if block == nil {
		return ""
	}
	for _, stmt := range block.Children {
		if stmt.Type != "expression_statement" {
			continue
		}
		for _, expr := range stmt.Children {
			if expr.Type == "string" {
				return expr.GetContent(source)
			}
		}
		break
	}
	return ""
}
