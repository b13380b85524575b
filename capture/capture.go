// Package capture - This file contains the frame sources feeding the fire detector.
package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEndOfStream is returned by Read once a finite source is exhausted.
	ErrEndOfStream = errors.New("end of stream")
	// ErrFrameRead is returned when a frame cannot be obtained.
	ErrFrameRead = errors.New("frame read failed")
)

// maxEmptyReads is how many consecutive empty frames a camera may deliver before Read
// gives up.
const maxEmptyReads = 30

// Supported file extensions
var (
	supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}
	supportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}
)

// InputType represents the type of input being processed
type InputType int

const (
	InputCamera InputType = iota
	InputVideo
	InputImage
	InputDirectory
)

func (t InputType) String() string {
	switch t {
	case InputCamera:
		return "camera"
	case InputVideo:
		return "video"
	case InputImage:
		return "image"
	case InputDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// InputConfig holds the input configuration
type InputConfig struct {
	Type     InputType
	Path     string
	DeviceID int
}

// Describe returns a human readable description of the input.
func (c InputConfig) Describe() string {
	if c.Type == InputCamera {
		return fmt.Sprintf("camera (device %d)", c.DeviceID)
	}
	return fmt.Sprintf("%s: %s", c.Type, c.Path)
}

// Source supplies BGR frames one at a time.
type Source interface {
	// Read fills dst with the next frame. It returns ErrEndOfStream when a finite
	// source is exhausted and an error wrapping ErrFrameRead on failure.
	Read(dst *gocv.Mat) error
	Close() error
}

// ResolveInput validates the input selection and returns the input configuration.
// With no path set the camera at deviceID is used.
func ResolveInput(deviceID int, videoPath, imagePath, dirPath string) (*InputConfig, error) {
	set := 0
	for _, p := range []string{videoPath, imagePath, dirPath} {
		if p != "" {
			set++
		}
	}
	if set > 1 {
		return nil, errors.New("only one of video, image and directory inputs may be given")
	}

	switch {
	case videoPath != "":
		if err := validateFile(videoPath, supportedVideoExtensions); err != nil {
			return nil, errors.Wrap(err, "video validation error")
		}
		return &InputConfig{Type: InputVideo, Path: videoPath}, nil
	case imagePath != "":
		if err := validateFile(imagePath, supportedImageExtensions); err != nil {
			return nil, errors.Wrap(err, "image validation error")
		}
		return &InputConfig{Type: InputImage, Path: imagePath}, nil
	case dirPath != "":
		info, err := os.Stat(dirPath)
		if err != nil {
			return nil, errors.Wrap(err, "directory validation error")
		}
		if !info.IsDir() {
			return nil, errors.Errorf("directory validation error: %s is not a directory", dirPath)
		}
		return &InputConfig{Type: InputDirectory, Path: dirPath}, nil
	default:
		if deviceID < 0 {
			return nil, errors.Errorf("invalid camera device %d", deviceID)
		}
		return &InputConfig{Type: InputCamera, DeviceID: deviceID}, nil
	}
}

// validateFile checks if the file exists and has a supported extension
func validateFile(filePath string, supportedExtensions []string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return errors.Errorf("file not found: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supportedExt := range supportedExtensions {
		if ext == supportedExt {
			return nil
		}
	}

	return errors.Errorf("unsupported file extension: %s. Supported extensions: %v", ext, supportedExtensions)
}

// Open creates the source described by cfg.
func Open(cfg InputConfig) (Source, error) {
	switch cfg.Type {
	case InputCamera:
		vc, err := gocv.OpenVideoCapture(cfg.DeviceID)
		if err != nil {
			return nil, errors.Wrapf(err, "open video capture device %d", cfg.DeviceID)
		}
		return &videoSource{capture: vc, live: true}, nil
	case InputVideo:
		vc, err := gocv.OpenVideoCapture(cfg.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "open video file %s", cfg.Path)
		}
		return &videoSource{capture: vc}, nil
	case InputImage:
		return &fileSource{paths: []string{cfg.Path}}, nil
	case InputDirectory:
		paths, err := ListFrames(cfg.Path)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, errors.Errorf("no image frames in %s", cfg.Path)
		}
		return &fileSource{paths: paths}, nil
	default:
		return nil, errors.Errorf("unknown input type %d", cfg.Type)
	}
}

// videoSource reads from a camera or a video file.
type videoSource struct {
	capture *gocv.VideoCapture
	live    bool
}

func (s *videoSource) Read(dst *gocv.Mat) error {
	for empty := 0; empty < maxEmptyReads; empty++ {
		if ok := s.capture.Read(dst); !ok {
			if s.live {
				return errors.Wrap(ErrFrameRead, "device closed")
			}
			return ErrEndOfStream
		}
		if !dst.Empty() {
			return nil
		}
	}
	return errors.Wrapf(ErrFrameRead, "%d consecutive empty frames", maxEmptyReads)
}

func (s *videoSource) Close() error {
	return s.capture.Close()
}

// fileSource reads still images in order.
type fileSource struct {
	paths []string
	next  int
}

func (s *fileSource) Read(dst *gocv.Mat) error {
	if s.next >= len(s.paths) {
		return ErrEndOfStream
	}
	path := s.paths[s.next]
	s.next++

	img := gocv.IMRead(path, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return errors.Wrapf(ErrFrameRead, "decode %s", path)
	}
	img.CopyTo(dst)
	return nil
}

func (s *fileSource) Close() error {
	return nil
}
