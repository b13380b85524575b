package fire

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// BGR colors used by the synthetic frames. gocv drawing takes color.RGBA but writes
// R, G, B into channels 2, 1, 0, so these read naturally.
var (
	black   = color.RGBA{0, 0, 0, 0}
	orange  = color.RGBA{255, 128, 0, 0}
	blue    = color.RGBA{0, 0, 255, 0}
	darkRed = color.RGBA{120, 0, 0, 0}
)

// mockFrameGenerator creates deterministic BGR frames for pipeline tests.
//
// @example
// gen := newMockFrameGenerator(200, 200)
// frame := gen.solid(black)
// defer frame.Close()
type mockFrameGenerator struct {
	width  int
	height int
}

func newMockFrameGenerator(width, height int) *mockFrameGenerator {
	return &mockFrameGenerator{width: width, height: height}
}

// solid creates a frame filled with c.
func (g *mockFrameGenerator) solid(c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		g.height, g.width, gocv.MatTypeCV8UC3)
}

// withPatches creates a frame of background bg with filled w×h patches of fg at each
// origin. A filled w×h block has a contour area of (w-1)*(h-1).
func (g *mockFrameGenerator) withPatches(bg, fg color.RGBA, w, h int, origins ...image.Point) gocv.Mat {
	frame := g.solid(bg)
	for _, o := range origins {
		gocv.Rectangle(&frame, image.Rect(o.X, o.Y, o.X+w, o.Y+h), fg, -1)
	}
	return frame
}
