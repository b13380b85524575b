package fire

import (
	"image"

	"gocv.io/x/gocv"
)

// BuildColorMask converts a BGR frame to HSV and marks every pixel that falls in any of
// the given bands with 255. The returned Mat is single channel, the same size as frame,
// and must be closed by the caller.
//
// Arguments:
//   - frame: 8-bit 3-channel BGR frame
//   - bands: Inclusive HSV bands to OR together
//
// Returns:
//   - gocv.Mat: Binary mask (0/255)
func BuildColorMask(frame gocv.Mat, bands []HSVBand) gocv.Mat {
	mask := gocv.Zeros(frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC1)
	if len(bands) == 0 {
		return mask
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	band := gocv.NewMat()
	defer band.Close()

	for _, b := range bands {
		lower := gocv.NewScalar(b.Lower[0], b.Lower[1], b.Lower[2], 0)
		upper := gocv.NewScalar(b.Upper[0], b.Upper[1], b.Upper[2], 0)
		gocv.InRangeWithScalar(hsv, lower, upper, &band)
		gocv.BitwiseOr(mask, band, &mask)
	}

	return mask
}

// MaskCleaner suppresses speckle noise in a binary mask with a closing followed by an
// opening. Closing first keeps small genuine blobs that an opening alone would erase.
type MaskCleaner struct {
	kernel gocv.Mat
}

// NewMaskCleaner creates a cleaner with a size×size all-ones structuring element.
// Close must be called to release the kernel.
func NewMaskCleaner(size int) *MaskCleaner {
	return &MaskCleaner{
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size)),
	}
}

// Clean returns a new cleaned mask; the input is left untouched.
func (c *MaskCleaner) Clean(mask gocv.Mat) gocv.Mat {
	cleaned := gocv.NewMat()
	gocv.MorphologyEx(mask, &cleaned, gocv.MorphClose, c.kernel)
	gocv.MorphologyEx(cleaned, &cleaned, gocv.MorphOpen, c.kernel)
	return cleaned
}

// Close releases the structuring element.
func (c *MaskCleaner) Close() error {
	return c.kernel.Close()
}
