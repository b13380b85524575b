// Package fire - Pipeline tests on synthetic frames covering the color, area and intensity heuristics
package fire

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newTestDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	det, err := NewDetector(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { det.Close() })
	return det
}

func detect(t *testing.T, det *Detector, frame gocv.Mat) *DetectionResult {
	t.Helper()
	res, err := det.Detect(frame)
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })
	return res
}

func TestDetectUniformOrangeFrame(t *testing.T) {
	det := newTestDetector(t, DefaultConfig())
	frame := newMockFrameGenerator(100, 100).solid(orange)
	defer frame.Close()

	res := detect(t, det, frame)

	assert.True(t, res.Detected)
	require.NotEmpty(t, res.Regions)
	assert.Greater(t, res.TotalArea, DefaultFireAreaThreshold)
	assert.InDelta(t, (0.0+128.0+255.0)/3.0, res.Regions[0].Intensity, 0.5)
	assert.Equal(t, frame.Rows()*frame.Cols(), gocv.CountNonZero(res.Mask))
}

func TestDetectUniformBlueFrame(t *testing.T) {
	det := newTestDetector(t, DefaultConfig())
	frame := newMockFrameGenerator(100, 100).solid(blue)
	defer frame.Close()

	res := detect(t, det, frame)

	assert.False(t, res.Detected)
	assert.Empty(t, res.Regions)
	assert.Zero(t, res.TotalArea)
	assert.Zero(t, gocv.CountNonZero(res.Mask))
}

func TestCleanedMaskOfBlackFrameIsEmpty(t *testing.T) {
	frame := newMockFrameGenerator(64, 48).solid(black)
	defer frame.Close()

	raw := BuildColorMask(frame, DefaultBands())
	defer raw.Close()

	cleaner := NewMaskCleaner(DefaultKernelSize)
	defer cleaner.Close()

	cleaned := cleaner.Clean(raw)
	defer cleaned.Close()

	assert.Equal(t, frame.Rows(), cleaned.Rows())
	assert.Equal(t, frame.Cols(), cleaned.Cols())
	assert.Zero(t, gocv.CountNonZero(cleaned))
}

func TestDetectDarkRedRejectedOnIntensity(t *testing.T) {
	det := newTestDetector(t, DefaultConfig())
	frame := newMockFrameGenerator(200, 200).withPatches(black, darkRed, 60, 60, image.Pt(50, 50))
	defer frame.Close()

	res := detect(t, det, frame)

	// The patch is in the red band and large enough, only its intensity fails.
	candidates := ExtractRegions(res.Mask, DefaultMinContourArea)
	require.Len(t, candidates, 1)
	assert.Greater(t, candidates[0].Area, DefaultFireAreaThreshold)
	assert.Less(t, MeanIntensity(frame, candidates[0].BBox), DefaultFireIntensityThreshold)

	assert.False(t, res.Detected)
	assert.Empty(t, res.Regions)
}

func TestDetectAreaBoundary(t *testing.T) {
	tests := []struct {
		name     string
		w, h     int
		detected bool
	}{
		{name: "area exactly at threshold", w: 21, h: 26, detected: false}, // 20*25 = 500
		{name: "area just above threshold", w: 21, h: 27, detected: true},  // 20*26 = 520
		{name: "area well below threshold", w: 16, h: 16, detected: false}, // 15*15 = 225
	}

	det := newTestDetector(t, DefaultConfig())
	gen := newMockFrameGenerator(120, 120)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := gen.withPatches(black, orange, tt.w, tt.h, image.Pt(40, 40))
			defer frame.Close()

			res := detect(t, det, frame)
			assert.Equal(t, tt.detected, res.Detected)
			if tt.detected {
				require.Len(t, res.Regions, 1)
				assert.Equal(t, image.Rect(40, 40, 40+tt.w, 40+tt.h), res.Regions[0].BBox)
				assert.InDelta(t, float64((tt.w-1)*(tt.h-1)), res.TotalArea, 1e-9)
			}
		})
	}
}

func TestClassifyRegionsStrictThresholds(t *testing.T) {
	frame := newMockFrameGenerator(100, 100).solid(orange)
	defer frame.Close()

	box := image.Rect(10, 10, 40, 40)
	candidates := []CandidateRegion{
		{Area: 499, BBox: box},
		{Area: 500, BBox: box},
		{Area: 501, BBox: box},
	}

	regions, total := ClassifyRegions(candidates, frame, DefaultFireAreaThreshold, DefaultFireIntensityThreshold)
	require.Len(t, regions, 1)
	assert.Equal(t, 501.0, regions[0].Area)
	assert.Equal(t, 501.0, total)

	// Intensity is also strict: the orange mean is ~127.67.
	regions, total = ClassifyRegions(candidates, frame, DefaultFireAreaThreshold, 200)
	assert.Empty(t, regions)
	assert.Zero(t, total)
}

func TestClassifyRegionsEmptyInput(t *testing.T) {
	frame := newMockFrameGenerator(10, 10).solid(orange)
	defer frame.Close()

	regions, total := ClassifyRegions(nil, frame, DefaultFireAreaThreshold, DefaultFireIntensityThreshold)
	assert.Empty(t, regions)
	assert.Zero(t, total)
}

func TestExtractRegionsNoiseFloorAndMultipleBlobs(t *testing.T) {
	cleaner := NewMaskCleaner(DefaultKernelSize)
	defer cleaner.Close()

	frame := newMockFrameGenerator(200, 200).withPatches(black, orange, 40, 40, image.Pt(10, 10), image.Pt(120, 120))
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(10, 150, 20, 160), orange, -1) // 9*9 = 81, under the floor

	raw := BuildColorMask(frame, DefaultBands())
	defer raw.Close()
	mask := cleaner.Clean(raw)
	defer mask.Close()

	regions := ExtractRegions(mask, DefaultMinContourArea)
	require.Len(t, regions, 2)

	var boxes []image.Rectangle
	for _, r := range regions {
		assert.InDelta(t, 39.0*39.0, r.Area, 1e-9)
		assert.NotEmpty(t, r.Boundary)
		boxes = append(boxes, r.BBox)
	}
	assert.ElementsMatch(t, []image.Rectangle{image.Rect(10, 10, 50, 50), image.Rect(120, 120, 160, 160)}, boxes)
}

func TestBuildColorMaskWithoutBands(t *testing.T) {
	frame := newMockFrameGenerator(32, 32).solid(orange)
	defer frame.Close()

	mask := BuildColorMask(frame, nil)
	defer mask.Close()

	assert.Equal(t, gocv.MatTypeCV8UC1, mask.Type())
	assert.Zero(t, gocv.CountNonZero(mask))
}

func TestDetectIntensityThresholdIsConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FireIntensityThreshold = 130
	det := newTestDetector(t, cfg)
	assert.Equal(t, 130.0, det.Config().FireIntensityThreshold)

	frame := newMockFrameGenerator(100, 100).solid(orange)
	defer frame.Close()

	res := detect(t, det, frame)
	assert.False(t, res.Detected)
	assert.Empty(t, res.Regions)
	// The mask does not depend on the classification thresholds.
	assert.NotZero(t, gocv.CountNonZero(res.Mask))
}

func TestDetectRejectsInvalidFrames(t *testing.T) {
	det := newTestDetector(t, DefaultConfig())

	empty := gocv.NewMat()
	defer empty.Close()
	_, err := det.Detect(empty)
	assert.True(t, errors.Is(err, ErrInvalidFrame))

	gray := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer gray.Close()
	_, err = det.Detect(gray)
	assert.True(t, errors.Is(err, ErrInvalidFrame))
}

func TestMeanIntensityClampsToFrame(t *testing.T) {
	frame := newMockFrameGenerator(20, 20).solid(orange)
	defer frame.Close()

	want := (0.0 + 128.0 + 255.0) / 3.0
	assert.InDelta(t, want, MeanIntensity(frame, image.Rect(10, 10, 50, 50)), 0.01)
	assert.Zero(t, MeanIntensity(frame, image.Rect(30, 30, 40, 40)))
	assert.Zero(t, MeanIntensity(frame, image.Rectangle{}))
}
