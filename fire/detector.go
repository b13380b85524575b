// Package fire - This file contains the per-frame fire detection pipeline
// using OpenCV (via gocv).
//
// The Detector encapsulates a heuristic color pipeline:
//  1. BGR to HSV conversion and hue-band thresholding into a binary mask.
//  2. Morphological closing then opening to remove speckle and fill gaps.
//  3. External contour extraction with a noise-floor area filter.
//  4. Area and mean-intensity thresholds against the original frame.
//
// Pipeline Overview:
//
// ┌──────────────┐
// │ Input Frame  │
// └──────┬───────┘
// ┌────────────────────────────┐
// │ HSV bands (red, orange)    │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Morphology (close, open)   │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ External contours          │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Area + intensity filter    │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ DetectionResult + verdict  │
// └────────────────────────────┘
//
// Usage:
//
//	det, err := fire.NewDetector(fire.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer det.Close()
//
//	res, err := det.Detect(frame)
//	if err != nil {
//	    return err
//	}
//	defer res.Close()
//	alarm.Update(res.Detected)
//
// Note: You must call Close() on the Detector and on every DetectionResult to release
// native resources.
package fire

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrInvalidFrame is returned when a frame is empty or is not 3-channel 8-bit.
var ErrInvalidFrame = errors.New("invalid frame")

// DetectionResult is the outcome of one Detect call.
type DetectionResult struct {
	// Regions are the accepted fire regions.
	Regions []ClassifiedRegion
	// Mask is the cleaned binary mask. Owned by the result.
	Mask gocv.Mat
	// TotalArea is the sum of the accepted regions' areas.
	TotalArea float64
	// Detected is the frame-level verdict.
	Detected bool
}

// Close releases the mask.
func (r *DetectionResult) Close() error {
	return r.Mask.Close()
}

// Detector runs the fire detection pipeline one frame at a time. It holds no per-frame
// state and is safe for concurrent use.
type Detector struct {
	config  Config
	cleaner *MaskCleaner
}

// NewDetector creates a new fire detector.
//
// Arguments:
//   - config: Configuration parameters for fire detection
//
// Returns:
//   - *Detector: The initialized detector
//   - error: ErrInvalidConfig when the configuration is unusable
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		config:  config,
		cleaner: NewMaskCleaner(config.KernelSize),
	}, nil
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config {
	return d.config
}

// Detect runs the pipeline on frame, which is not modified.
func (d *Detector) Detect(frame gocv.Mat) (*DetectionResult, error) {
	if frame.Empty() {
		return nil, errors.Wrap(ErrInvalidFrame, "frame is empty")
	}
	if frame.Type() != gocv.MatTypeCV8UC3 {
		return nil, errors.Wrapf(ErrInvalidFrame, "expected 8-bit BGR frame, got type %v", frame.Type())
	}

	raw := BuildColorMask(frame, d.config.Bands)
	mask := d.cleaner.Clean(raw)
	raw.Close()

	candidates := ExtractRegions(mask, d.config.MinContourArea)
	regions, totalArea := ClassifyRegions(candidates, frame, d.config.FireAreaThreshold, d.config.FireIntensityThreshold)

	// The area clause is implied by a non-empty Regions only while every accepted
	// region must itself exceed FireAreaThreshold.
	detected := len(regions) > 0 && totalArea > d.config.FireAreaThreshold

	return &DetectionResult{
		Regions:   regions,
		Mask:      mask,
		TotalArea: totalArea,
		Detected:  detected,
	}, nil
}

// Close releases the native resources held by the detector.
func (d *Detector) Close() error {
	return d.cleaner.Close()
}
