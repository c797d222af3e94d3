package lexical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Decode parses stored Lexical JSON. Empty input yields an empty document.
func Decode(content string) (LexicalRoot, error) {
	if strings.TrimSpace(content) == "" {
		return Document(), nil
	}
	var root LexicalRoot
	if err := json.Unmarshal([]byte(content), &root); err != nil {
		return LexicalRoot{}, fmt.Errorf("failed to parse lexical json: %w", err)
	}
	return root, nil
}

// Canonical serializes a document deterministically. Two documents are
// structurally equal exactly when their canonical forms are byte-equal.
func Canonical(root LexicalRoot) ([]byte, error) {
	data, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lexical json: %w", err)
	}
	return data, nil
}

// Equal reports structural equality of two canonical snapshots.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// Fingerprint is a short content hash of a canonical snapshot, used in logs and as a draft version.
func Fingerprint(canonical []byte) uint64 {
	return xxhash.Sum64(canonical)
}

// Clone deep-copies the tree so edits never alias the caller's children slices.
func Clone(root LexicalRoot) LexicalRoot {
	return LexicalRoot{Root: cloneNode(root.Root)}
}

func cloneNode(n Node) Node {
	out := n
	if n.Children != nil {
		out.Children = make([]Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = cloneNode(child)
		}
	}
	return out
}

// ─── Builders ────────────────────────────────────────────────────────────────

func Document(blocks ...Node) LexicalRoot {
	return LexicalRoot{Root: Node{
		Type:      TypeRoot,
		Version:   1,
		Direction: "ltr",
		Children:  blocks,
	}}
}

func Text(s string) Node {
	return Node{Type: TypeText, Version: 1, Text: s, Mode: "normal", Format: 0}
}

func Paragraph(s string) Node {
	var children []Node
	if s != "" {
		children = []Node{Text(s)}
	}
	return Node{Type: TypeParagraph, Version: 1, Direction: "ltr", Children: children}
}

func Heading(tag, s string) Node {
	return Node{Type: TypeHeading, Version: 1, Tag: tag, Direction: "ltr", Children: []Node{Text(s)}}
}

func Link(url, title string) Node {
	return Node{
		Type:      TypeLink,
		Version:   1,
		URL:       url,
		Rel:       "noopener",
		Direction: "ltr",
		Children:  []Node{Text(title)},
	}
}
