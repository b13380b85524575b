package fire

import (
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// CandidateRegion is an external contour of the cleaned mask that cleared the noise floor.
type CandidateRegion struct {
	// Boundary holds the contour points as returned by the simple chain approximation.
	Boundary []image.Point
	// Area is the polygon area enclosed by Boundary, not a pixel count.
	Area float64
	// BBox is the tight axis-aligned rectangle around Boundary.
	BBox image.Rectangle
}

// ClassifiedRegion is a candidate that passed the fire area and intensity thresholds.
type ClassifiedRegion struct {
	CandidateRegion
	// Intensity is the mean sample value over BBox in the original frame, all channels.
	Intensity float64
}

// ExtractRegions finds the external contours of mask and keeps those whose area is
// strictly above minArea. Holes and nested contours are ignored. The order of the
// result follows contour discovery and carries no meaning.
func ExtractRegions(mask gocv.Mat, minArea float64) []CandidateRegion {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []CandidateRegion
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area <= minArea {
			continue
		}
		regions = append(regions, CandidateRegion{
			Boundary: contour.ToPoints(),
			Area:     area,
			BBox:     gocv.BoundingRect(contour),
		})
	}
	return regions
}

// ClassifyRegions samples the mean intensity of each candidate's bounding box in frame
// and accepts it when both its area and its intensity are strictly above the thresholds.
//
// Arguments:
//   - candidates: Regions produced by ExtractRegions
//   - frame: The original BGR frame, not the mask
//   - areaThreshold: Strict lower bound on region area
//   - intensityThreshold: Strict lower bound on mean intensity
//
// Returns:
//   - []ClassifiedRegion: Accepted regions
//   - float64: Sum of the accepted regions' areas
func ClassifyRegions(candidates []CandidateRegion, frame gocv.Mat, areaThreshold, intensityThreshold float64) ([]ClassifiedRegion, float64) {
	var (
		accepted  []ClassifiedRegion
		totalArea float64
	)
	for _, c := range candidates {
		intensity := MeanIntensity(frame, c.BBox)
		if c.Area > areaThreshold && intensity > intensityThreshold {
			accepted = append(accepted, ClassifiedRegion{CandidateRegion: c, Intensity: intensity})
			totalArea += c.Area
		}
	}
	return accepted, totalArea
}

// MeanIntensity returns the arithmetic mean of every sample of every channel of frame
// inside rect. Rectangles are clamped to the frame; an empty rectangle yields 0.
func MeanIntensity(frame gocv.Mat, rect image.Rectangle) float64 {
	rect = rect.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if rect.Empty() {
		return 0
	}

	roi := frame.Region(rect)
	defer roi.Close()

	// Every channel has the same sample count, so the mean of the channel means is the
	// mean over all samples.
	m := roi.Mean()
	channels := []float64{m.Val1, m.Val2, m.Val3, m.Val4}
	n := frame.Channels()
	if n < 1 || n > len(channels) {
		n = 1
	}
	return stat.Mean(channels[:n], nil)
}
