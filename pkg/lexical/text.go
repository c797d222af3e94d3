package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Block is one top-level child of the root, flattened to plain text.
type Block struct {
	Index  int
	Type   string
	Tag    string
	Text   string
	Offset int // start of Text within the document's plain text
}

func (b Block) IsHeading() bool {
	return b.Type == TypeHeading
}

// End is the offset just past the block's text.
func (b Block) End() int {
	return b.Offset + len(b.Text)
}

// textSpan locates one text node inside the flattened document.
type textSpan struct {
	parent *Node
	index  int
	start  int
}

func (s textSpan) node() *Node {
	return &s.parent.Children[s.index]
}

// flattener renders a tree into plain text while remembering where each text
// node landed, so offsets found in the text can be mapped back onto nodes.
type flattener struct {
	sb     strings.Builder
	spans  []textSpan
	blocks []Block
}

func flatten(root *LexicalRoot) *flattener {
	f := &flattener{}
	for i := range root.Root.Children {
		if i > 0 {
			f.sb.WriteString("\n")
		}
		block := &root.Root.Children[i]
		start := f.sb.Len()
		f.children(block, separator(block.Type))
		f.blocks = append(f.blocks, Block{
			Index:  i,
			Type:   block.Type,
			Tag:    block.Tag,
			Text:   f.sb.String()[start:],
			Offset: start,
		})
	}
	return f
}

// separator is what goes between the children of a node of type t.
func separator(t string) string {
	switch t {
	case TypeList, TypeTable:
		return "\n"
	case TypeTableRow:
		return "\t"
	}
	return ""
}

func (f *flattener) children(parent *Node, sep string) {
	for i := range parent.Children {
		if i > 0 && sep != "" {
			f.sb.WriteString(sep)
		}
		child := &parent.Children[i]
		switch child.Type {
		case TypeText:
			f.spans = append(f.spans, textSpan{parent: parent, index: i, start: f.sb.Len()})
			f.sb.WriteString(child.Text)
		case TypeLineBreak:
			f.sb.WriteString("\n")
		case TypeTab:
			f.sb.WriteString("\t")
		default:
			f.children(child, separator(child.Type))
		}
	}
}

// Blocks returns the top-level blocks in document order.
func Blocks(root LexicalRoot) []Block {
	return flatten(&root).blocks
}

// PlainText renders the document as plain text, one line per block.
func PlainText(root LexicalRoot) string {
	return flatten(&root).sb.String()
}

// FindMarkers returns the byte offsets of every case-insensitive, whole-word
// occurrence of marker in text. The scan is linear in len(text).
func FindMarkers(text, marker string) []int {
	m := len(marker)
	if m == 0 {
		return nil
	}
	var out []int
	for i := 0; i+m <= len(text); i++ {
		if !strings.EqualFold(text[i:i+m], marker) {
			continue
		}
		if !boundaryBefore(text, i) || !boundaryAfter(text, i+m) {
			continue
		}
		out = append(out, i)
		i += m - 1
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}
