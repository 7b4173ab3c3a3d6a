// Package render draws world snapshots, as PNG for the HTTP bridge and as
// text for terminals.
package render

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/brensch/snekline/game"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

// Palette is the host's per-player head colours, indexed by snake id modulo
// its length.
var Palette = []color.RGBA{
	{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}, {255, 255, 0, 255},
	{0, 255, 255, 255}, {255, 0, 255, 255}, {192, 192, 192, 255}, {128, 128, 128, 255},
	{128, 0, 0, 255}, {128, 128, 0, 255}, {0, 128, 0, 255}, {128, 0, 128, 255},
	{0, 128, 128, 255}, {0, 0, 128, 255},
}

var (
	background   = color.RGBA{10, 10, 10, 255}
	segmentColor = color.RGBA{102, 102, 102, 255}
	foodColor    = color.RGBA{204, 25, 25, 255}
	selfRing     = color.RGBA{255, 255, 255, 255}
)

// Options controls PNG output. Zero values pick defaults.
type Options struct {
	Width  int     // output size in pixels
	Height int
	Radius float64 // segment radius in plane units
	SelfID int     // snake to outline; -1 for none
}

var DefaultOptions = Options{Width: 512, Height: 512, Radius: 5, SelfID: -1}

// drawSize is the internal canvas side; the result is resampled to the
// requested size.
const drawSize = 1024

// Image draws snap on the host's y-up plane, fitted to the entities' bounds.
func Image(snap game.Snapshot, opts Options) image.Image {
	if opts.Width <= 0 {
		opts.Width = DefaultOptions.Width
	}
	if opts.Height <= 0 {
		opts.Height = DefaultOptions.Height
	}
	if opts.Radius <= 0 {
		opts.Radius = DefaultOptions.Radius
	}

	dc := gg.NewContext(drawSize, drawSize)
	dc.SetColor(background)
	dc.Clear()

	lo, hi, ok := snap.Bounds()
	if ok {
		// Work in half-units so extreme coordinates cannot overflow the span.
		halfSide := max(hi.X/2-lo.X/2, hi.Y/2-lo.Y/2) + 2*opts.Radius
		scale := drawSize / halfSide
		// gg is y-down; draw y-up coordinates directly and flip afterwards.
		px := func(p game.Position) (float64, float64, bool) {
			if !p.Finite() {
				return 0, 0, false
			}
			return (p.X/2 - lo.X/2 + opts.Radius) * scale, (p.Y/2 - lo.Y/2 + opts.Radius) * scale, true
		}
		r := opts.Radius / 2 * scale

		for _, f := range snap.Food {
			x, y, ok := px(f)
			if !ok {
				continue
			}
			dc.SetColor(foodColor)
			dc.DrawCircle(x, y, r/3)
			dc.Fill()
		}
		for _, s := range snap.Snakes {
			for i := len(s.Body) - 1; i >= 0; i-- {
				x, y, ok := px(s.Body[i])
				if !ok {
					continue
				}
				if i == 0 {
					dc.SetColor(Palette[s.ID%len(Palette)])
				} else {
					dc.SetColor(segmentColor)
				}
				dc.DrawCircle(x, y, r)
				dc.Fill()
			}
			if s.ID != opts.SelfID || len(s.Body) == 0 {
				continue
			}
			if x, y, ok := px(s.Body[0]); ok {
				dc.SetColor(selfRing)
				dc.SetLineWidth(math.Max(1, r/4))
				dc.DrawCircle(x, y, r*1.4)
				dc.Stroke()
			}
		}
	}

	flipped := imaging.FlipV(dc.Image())
	return imaging.Resize(flipped, opts.Width, opts.Height, imaging.Lanczos)
}

// PNG encodes Image(snap, opts) to w.
func PNG(w io.Writer, snap game.Snapshot, opts Options) error {
	return imaging.Encode(w, Image(snap, opts), imaging.PNG)
}
