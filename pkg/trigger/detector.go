// Package trigger finds the manual link marker in a document and extracts the
// text around it that link suggestions are generated from.
package trigger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"ai-notetaking-editor/pkg/editor"
	"ai-notetaking-editor/pkg/lexical"
)

// TypeManual is the only trigger type: the user typed the marker on purpose.
const TypeManual = "manual"

type Strategy string

const (
	StrategyBlock  Strategy = "block"
	StrategyWindow Strategy = "window"
	StrategyHead   Strategy = "head"
)

type Options struct {
	Marker      string
	BlockRadius int // neighbouring blocks kept on each side of the marker's block
	WindowChars int // fallback window on each side of the marker
	HeadChars   int // last-resort prefix of the document
	MaxChars    int // upper bound of any extracted context
}

func DefaultOptions() Options {
	return Options{
		Marker:      "@link",
		BlockRadius: 2,
		WindowChars: 250,
		HeadChars:   500,
		MaxChars:    2000,
	}
}

// Context describes one detected trigger.
type Context struct {
	Type         string
	MarkerOffset int
	Text         string
	Strategy     Strategy
	Screen       editor.Point
}

// Result is the outcome of one scan. Count is reported even when nothing is
// extracted so callers can tell a newly typed marker from a lingering one.
type Result struct {
	Count   int
	Found   bool
	Context Context
}

type Detector struct {
	opts Options
}

func NewDetector(opts Options) *Detector {
	def := DefaultOptions()
	if opts.Marker == "" {
		opts.Marker = def.Marker
	}
	if opts.BlockRadius < 0 {
		opts.BlockRadius = def.BlockRadius
	}
	if opts.WindowChars <= 0 {
		opts.WindowChars = def.WindowChars
	}
	if opts.HeadChars <= 0 {
		opts.HeadChars = def.HeadChars
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	return &Detector{opts: opts}
}

func (d *Detector) Marker() string {
	return d.opts.Marker
}

// Detect looks for the marker in the document. When several are present the
// one closest to the cursor wins, since that is the one just typed.
func (d *Detector) Detect(doc lexical.LexicalRoot, cursor editor.Cursor) Result {
	blocks := lexical.Blocks(doc)
	text := joinBlocks(blocks)

	offsets := lexical.MarkerOffsets(doc, d.opts.Marker)
	if len(offsets) == 0 {
		return Result{}
	}

	at := offsets[0]
	for _, off := range offsets[1:] {
		if abs(off-cursor.Offset) < abs(at-cursor.Offset) {
			at = off
		}
	}

	extracted, strategy := d.Extract(blocks, text, at)
	return Result{
		Count: len(offsets),
		Found: true,
		Context: Context{
			Type:         TypeManual,
			MarkerOffset: at,
			Text:         extracted,
			Strategy:     strategy,
			Screen:       cursor.Screen,
		},
	}
}

// Extract applies the tiers in order: surrounding blocks plus headings, then a
// character window around the marker, then the head of the document.
func (d *Detector) Extract(blocks []lexical.Block, text string, markerOffset int) (string, Strategy) {
	if ctx := d.blockContext(blocks, markerOffset); ctx != "" {
		return ctx, StrategyBlock
	}
	if ctx := d.windowContext(text, markerOffset); ctx != "" {
		return ctx, StrategyWindow
	}
	return d.headContext(text), StrategyHead
}

func (d *Detector) blockContext(blocks []lexical.Block, markerOffset int) string {
	home := -1
	for i, b := range blocks {
		if markerOffset >= b.Offset && markerOffset <= b.End() {
			home = i
			break
		}
	}
	if home < 0 {
		return ""
	}

	lo, hi := home-d.opts.BlockRadius, home+d.opts.BlockRadius
	var parts []string
	markerAt := -1
	size := 0
	for i, b := range blocks {
		if (i < lo || i > hi) && !b.IsHeading() {
			continue
		}
		part := strings.TrimSpace(b.Text)
		if part == "" {
			continue
		}
		if i == home {
			leading := len(b.Text) - len(strings.TrimLeftFunc(b.Text, unicode.IsSpace))
			markerAt = size + (markerOffset - b.Offset) - leading
		}
		parts = append(parts, part)
		size += len(part) + 1
	}
	joined := strings.Join(parts, "\n")
	if joined == "" {
		return ""
	}
	if len(joined) <= d.opts.MaxChars {
		return joined
	}
	if markerAt < 0 {
		markerAt = 0
	}
	half := d.opts.MaxChars / 2
	return strings.TrimSpace(runeSlice(joined, markerAt-half, markerAt+half))
}

func (d *Detector) windowContext(text string, markerOffset int) string {
	if markerOffset < 0 || markerOffset > len(text) {
		return ""
	}
	start := markerOffset - d.opts.WindowChars
	end := markerOffset + len(d.opts.Marker) + d.opts.WindowChars
	return strings.TrimSpace(runeSlice(text, start, end))
}

func (d *Detector) headContext(text string) string {
	if utf8.RuneCountInString(text) <= d.opts.HeadChars {
		return strings.TrimSpace(text)
	}
	n := 0
	for i := range text {
		if n == d.opts.HeadChars {
			return strings.TrimSpace(text[:i])
		}
		n++
	}
	return strings.TrimSpace(text)
}

// runeSlice cuts text[start:end] after clamping to the string and widening the
// bounds to rune boundaries.
func runeSlice(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start >= end {
		return ""
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}

func joinBlocks(blocks []lexical.Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(b.Text)
	}
	return sb.String()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
