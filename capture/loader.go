package capture

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// frameFile is an image file in a frame directory.
type frameFile struct {
	// Path is the path to the image file.
	Path string
	// Frame is the frame number parsed from a frame-N name, or -1.
	Frame int
}

// ListFrames returns the image files in dir in playback order.
//
// Files named frame-N.ext are ordered by N and come first; any other image files follow
// in lexical order. Subdirectories and non-image files are ignored.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []string: Paths of the image files.
// - error: Error if the directory cannot be read.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %s", dir)
	}

	var files []frameFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !isImageExtension(ext) {
			continue
		}

		frame := -1
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if n, err := strconv.Atoi(strings.TrimPrefix(stem, "frame-")); err == nil && strings.HasPrefix(stem, "frame-") {
			frame = n
		}
		files = append(files, frameFile{Path: filepath.Join(dir, entry.Name()), Frame: frame})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		switch {
		case a.Frame >= 0 && b.Frame >= 0:
			return a.Frame < b.Frame
		case a.Frame >= 0:
			return true
		case b.Frame >= 0:
			return false
		default:
			return a.Path < b.Path
		}
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	return paths, nil
}

func isImageExtension(ext string) bool {
	for _, supported := range supportedImageExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}
