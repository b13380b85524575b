package events

import (
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// DefaultSnapshotWidth bounds the width of stored thumbnails.
const DefaultSnapshotWidth = 320

// SnapshotFormat is the encoding of stored thumbnails.
type SnapshotFormat string

const (
	SnapshotJPEG SnapshotFormat = "jpeg"
	SnapshotWebP SnapshotFormat = "webp"
)

// Ext is the file extension, including the dot.
func (f SnapshotFormat) Ext() string {
	if f == SnapshotWebP {
		return ".webp"
	}
	return ".jpg"
}

// ParseSnapshotFormat accepts "jpeg", "jpg", "webp" or "" (JPEG).
func ParseSnapshotFormat(s string) (SnapshotFormat, error) {
	switch s {
	case "", "jpeg", "jpg":
		return SnapshotJPEG, nil
	case "webp":
		return SnapshotWebP, nil
	}
	return "", errors.Errorf("unsupported snapshot format %q", s)
}

// SnapshotWriter stores thumbnails of the first frame of each episode.
type SnapshotWriter struct {
	dir      string
	maxWidth uint
	quality  int
	format   SnapshotFormat
}

// NewSnapshotWriter creates dir if needed. maxWidth of 0 means DefaultSnapshotWidth.
func NewSnapshotWriter(dir string, maxWidth uint) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create snapshot dir %s", dir)
	}
	if maxWidth == 0 {
		maxWidth = DefaultSnapshotWidth
	}
	return &SnapshotWriter{dir: dir, maxWidth: maxWidth, quality: 85, format: SnapshotJPEG}, nil
}

// WithFormat switches the encoding of subsequent snapshots.
func (w *SnapshotWriter) WithFormat(format SnapshotFormat) *SnapshotWriter {
	w.format = format
	return w
}

// Write downsizes img to at most maxWidth (keeping aspect ratio) and writes
// <dir>/<name>.<ext>, returning the path.
func (w *SnapshotWriter) Write(name string, img image.Image) (string, error) {
	if img.Bounds().Dx() > int(w.maxWidth) {
		img = resize.Resize(w.maxWidth, 0, img, resize.Lanczos3)
	}

	path := filepath.Join(w.dir, name+w.format.Ext())
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create snapshot %s", path)
	}
	defer f.Close()

	if err := w.encode(f, img); err != nil {
		return "", errors.Wrapf(err, "encode snapshot %s", path)
	}
	return path, nil
}

func (w *SnapshotWriter) encode(out io.Writer, img image.Image) error {
	if w.format == SnapshotWebP {
		return webp.Encode(out, img, &webp.Options{Quality: float32(w.quality)})
	}
	return jpeg.Encode(out, img, &jpeg.Options{Quality: w.quality})
}
