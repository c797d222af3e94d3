package lexical

import "strings"

// markerRun is one marker occurrence in the flattened text. It covers the
// consecutive text children first..last of a single parent, from byte head of
// the first node's text to byte tail of the last node's text.
type markerRun struct {
	at     int
	parent *Node
	first  int
	last   int
	head   int
	tail   int
}

// MarkerOffsets returns the plain-text offsets of every marker that
// ReplaceMarker and RemoveMarkers can address. A marker that straddles a link
// or another inline element is not addressable and is left out.
func MarkerOffsets(root LexicalRoot, marker string) []int {
	f := flatten(&root)
	var out []int
	for _, r := range f.markerRuns(marker) {
		out = append(out, r.at)
	}
	return out
}

// ReplaceMarker swaps the marker occurrence closest to nearOffset for the given
// node (normally a link). A marker split over sibling text nodes, as happens
// when only part of it is formatted, is replaced as a whole. The input tree is
// not modified.
func ReplaceMarker(root LexicalRoot, marker string, nearOffset int, replacement Node) (LexicalRoot, bool) {
	doc := Clone(root)
	f := flatten(&doc)

	run, ok := closestRun(f.markerRuns(marker), nearOffset)
	if !ok {
		return root, false
	}

	siblings := run.parent.Children
	first, last := siblings[run.first], siblings[run.last]

	var parts []Node
	if before := first.Text[:run.head]; before != "" {
		first.Text = before
		parts = append(parts, first)
	}
	parts = append(parts, replacement)
	if after := last.Text[run.tail:]; after != "" {
		last.Text = after
		parts = append(parts, last)
	}

	spliced := make([]Node, 0, len(siblings)+len(parts))
	spliced = append(spliced, siblings[:run.first]...)
	spliced = append(spliced, parts...)
	spliced = append(spliced, siblings[run.last+1:]...)
	run.parent.Children = spliced

	return doc, true
}

// RemoveMarkers deletes every whole-word occurrence of marker, collapsing the
// doubled space a removal leaves behind. It reports how many were removed.
func RemoveMarkers(root LexicalRoot, marker string) (LexicalRoot, int) {
	doc := Clone(root)
	f := flatten(&doc)

	runs := f.markerRuns(marker)
	if len(runs) == 0 {
		return root, 0
	}

	emptied := make(map[*Node]bool)
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		nodes := r.parent.Children
		head := nodes[r.first].Text[:r.head]
		tail := nodes[r.last].Text[r.tail:]
		if strings.HasSuffix(head, " ") {
			if strings.HasPrefix(tail, " ") {
				tail = tail[1:]
			} else if next := r.last + 1; tail == "" && next < len(nodes) &&
				nodes[next].Type == TypeText && strings.HasPrefix(nodes[next].Text, " ") {
				nodes[next].Text = nodes[next].Text[1:]
			}
		}
		if r.first == r.last {
			nodes[r.first].Text = head + tail
			continue
		}
		nodes[r.first].Text = head
		for j := r.first + 1; j < r.last; j++ {
			nodes[j].Text = ""
		}
		nodes[r.last].Text = tail
		emptied[r.parent] = true
	}

	for parent := range emptied {
		kept := parent.Children[:0]
		for _, child := range parent.Children {
			if child.Type == TypeText && child.Text == "" {
				continue
			}
			kept = append(kept, child)
		}
		parent.Children = kept
	}
	return doc, len(runs)
}

func (f *flattener) markerRuns(marker string) []markerRun {
	var out []markerRun
	for _, at := range FindMarkers(f.sb.String(), marker) {
		if r, ok := f.run(at, at+len(marker)); ok {
			out = append(out, r)
		}
	}
	return out
}

// run maps the text range [start, end) onto consecutive text siblings.
func (f *flattener) run(start, end int) (markerRun, bool) {
	for i, span := range f.spans {
		if start < span.start || start >= span.start+len(span.node().Text) {
			continue
		}
		r := markerRun{at: start, parent: span.parent, first: span.index, head: start - span.start}
		pos := span.start
		for j := i; j < len(f.spans); j++ {
			s := f.spans[j]
			if s.parent != span.parent || s.index != span.index+j-i || s.start != pos {
				return markerRun{}, false
			}
			pos = s.start + len(s.node().Text)
			if end <= pos {
				r.last = s.index
				r.tail = end - s.start
				return r, true
			}
		}
		return markerRun{}, false
	}
	return markerRun{}, false
}

func closestRun(runs []markerRun, nearOffset int) (markerRun, bool) {
	if len(runs) == 0 {
		return markerRun{}, false
	}
	best := runs[0]
	for _, r := range runs[1:] {
		if distance(r.at, nearOffset) < distance(best.at, nearOffset) {
			best = r
		}
	}
	return best, true
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
