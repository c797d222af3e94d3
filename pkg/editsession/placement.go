package editsession

import "ai-notetaking-editor/pkg/editor"

type PlacementOptions struct {
	Width      int
	Height     int
	Margin     int
	LineHeight int // gap between the caret's top edge and the popup when placed below
}

func DefaultPlacementOptions() PlacementOptions {
	return PlacementOptions{Width: 360, Height: 320, Margin: 16, LineHeight: 24}
}

// Placement is the popup's top-left corner in viewport coordinates.
type Placement struct {
	X     int
	Y     int
	Above bool
}

// Compute places the popup below the caret unless it would not fit there
// while it would fit above. X is clamped to stay Margin away from both edges;
// a viewport narrower than the popup pins it to the left margin.
func Compute(caret editor.Point, vp editor.Viewport, o PlacementOptions) Placement {
	p := Placement{Y: caret.Y + o.LineHeight}

	spaceBelow := vp.Height - p.Y - o.Margin
	spaceAbove := caret.Y - o.Margin
	if spaceBelow < o.Height && spaceAbove >= o.Height {
		p.Above = true
		p.Y = caret.Y - o.Height
	}

	p.X = caret.X
	if limit := vp.Width - o.Margin - o.Width; p.X > limit {
		p.X = limit
	}
	if p.X < o.Margin {
		p.X = o.Margin
	}
	return p
}
