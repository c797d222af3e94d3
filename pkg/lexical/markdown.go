package lexical

import (
	"encoding/json"
	"strconv"
	"strings"
)

// MarkdownOptions shapes the Markdown handed to tag generation.
type MarkdownOptions struct {
	// PageLinkPrefix marks links to workspace pages. They render as [[Title]]
	// so the URL path does not leak words into the tags.
	PageLinkPrefix string
	// Marker, when set, is removed before rendering.
	Marker string
}

// Markdown renders the block structure of a document: headings, quotes, lists,
// code, tables and links. Inline formatting is dropped.
func Markdown(root LexicalRoot, opts MarkdownOptions) string {
	if opts.Marker != "" {
		root, _ = RemoveMarkers(root, opts.Marker)
	}
	w := mdWriter{opts: opts}
	blocks := make([]string, 0, len(root.Root.Children))
	for _, block := range root.Root.Children {
		if md := strings.TrimSpace(w.block(block)); md != "" {
			blocks = append(blocks, md)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// ParseContent turns stored Lexical JSON into Markdown. Anything that is not a
// Lexical document comes back unchanged.
func ParseContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return content
	}
	var root LexicalRoot
	if err := json.Unmarshal([]byte(trimmed), &root); err != nil || root.Root.Type != TypeRoot {
		return content
	}
	return Markdown(root, MarkdownOptions{})
}

type mdWriter struct {
	opts MarkdownOptions
}

func (w mdWriter) block(n Node) string {
	switch n.Type {
	case TypeHeading:
		return strings.Repeat("#", headingLevel(n.Tag)) + " " + w.inline(n.Children)
	case TypeQuote:
		return "> " + w.inline(n.Children)
	case TypeCode:
		return "```\n" + w.inline(n.Children) + "\n```"
	case TypeList:
		var sb strings.Builder
		w.list(&sb, n, 0)
		return strings.TrimRight(sb.String(), "\n")
	case TypeTable:
		return w.table(n)
	case TypeRule:
		return "---"
	}
	return w.inline(n.Children)
}

func (w mdWriter) inline(children []Node) string {
	var sb strings.Builder
	for _, c := range children {
		switch c.Type {
		case TypeText:
			sb.WriteString(c.Text)
		case TypeLineBreak:
			sb.WriteString("\n")
		case TypeTab:
			sb.WriteString("\t")
		case TypeLink:
			title := w.inline(c.Children)
			if w.opts.PageLinkPrefix != "" && strings.HasPrefix(c.URL, w.opts.PageLinkPrefix) {
				sb.WriteString("[[" + title + "]]")
			} else {
				sb.WriteString("[" + title + "](" + c.URL + ")")
			}
		default:
			sb.WriteString(w.inline(c.Children))
		}
	}
	return sb.String()
}

func (w mdWriter) list(sb *strings.Builder, list Node, depth int) {
	n := 1
	if list.Start > 0 {
		n = list.Start
	}
	for _, item := range list.Children {
		if item.Type != TypeListItem {
			continue
		}
		var nested []Node
		content := make([]Node, 0, len(item.Children))
		for _, c := range item.Children {
			if c.Type == TypeList {
				nested = append(nested, c)
			} else {
				content = append(content, c)
			}
		}

		// Lexical wraps a nested list in an item of its own; skip the empty bullet.
		if len(content) > 0 || len(nested) == 0 {
			sb.WriteString(strings.Repeat("  ", depth))
			switch list.ListType {
			case "number":
				sb.WriteString(strconv.Itoa(n) + ". ")
				n++
			case "check":
				if item.Checked {
					sb.WriteString("- [x] ")
				} else {
					sb.WriteString("- [ ] ")
				}
			default:
				sb.WriteString("- ")
			}
			sb.WriteString(w.inline(content))
			sb.WriteString("\n")
		}
		for _, sub := range nested {
			w.list(sb, sub, depth+1)
		}
	}
}

func (w mdWriter) table(t Node) string {
	var lines []string
	for i, row := range t.Children {
		if row.Type != TypeTableRow {
			continue
		}
		cells := make([]string, 0, len(row.Children))
		for _, cell := range row.Children {
			cells = append(cells, strings.ReplaceAll(w.inline(cell.Children), "\n", " "))
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			lines = append(lines, "|"+strings.Repeat("---|", len(cells)))
		}
	}
	return strings.Join(lines, "\n")
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 1
}
