package main

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func writeFrame(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(0, 0, 160, 120), c, -1)
	require.True(t, gocv.IMWrite(path, img))
}

func TestRunCountsFireFrames(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, filepath.Join(dir, "frame-1.png"), color.RGBA{255, 128, 0, 0})
	writeFrame(t, filepath.Join(dir, "frame-2.png"), color.RGBA{0, 0, 255, 0})
	out := filepath.Join(t.TempDir(), "annotated")

	fired, err := run("", "", dir, out)
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	for _, name := range []string{"frame-1.png", "frame-2.png"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}
}

func TestRunRequiresInput(t *testing.T) {
	_, err := run("", "", "", "")
	assert.Error(t, err)
}
