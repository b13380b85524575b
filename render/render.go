// Package render draws detection results onto frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-fire/fire"
)

var (
	// gocv maps R, G, B to channels 2, 1, 0, so these are the colors they read as.
	red   = color.RGBA{255, 0, 0, 0}
	green = color.RGBA{0, 255, 0, 0}
	white = color.RGBA{255, 255, 255, 0}
)

// RegionLabel is the text drawn above a fire region.
func RegionLabel(r fire.ClassifiedRegion) string {
	return fmt.Sprintf("Fire: %d px", int(r.Area))
}

// Banner returns the status text and its color for a verdict.
func Banner(detected bool) (string, color.RGBA) {
	if detected {
		return "FIRE DETECTED!", red
	}
	return "NO FIRE", green
}

// AreaLine is the aggregate area text.
func AreaLine(totalArea float64) string {
	return fmt.Sprintf("Fire Area: %d", int(totalArea))
}

// Annotate draws a box and label per fire region, the status banner and the total area.
func Annotate(frame *gocv.Mat, res *fire.DetectionResult) {
	for _, r := range res.Regions {
		gocv.Rectangle(frame, r.BBox, red, 2)
		gocv.PutText(frame, RegionLabel(r), image.Pt(r.BBox.Min.X, r.BBox.Min.Y-10),
			gocv.FontHersheySimplex, 0.5, red, 1)
	}

	text, c := Banner(res.Detected)
	gocv.PutText(frame, text, image.Pt(10, 30), gocv.FontHersheySimplex, 1, c, 2)
	gocv.PutText(frame, AreaLine(res.TotalArea), image.Pt(10, 60), gocv.FontHersheySimplex, 0.7, white, 1)
}
