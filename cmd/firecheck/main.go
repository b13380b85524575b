// Command firecheck runs fire detection over still images and prints one verdict per frame.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-fire/capture"
	"github.com/nvr-ai/go-fire/config"
	"github.com/nvr-ai/go-fire/fire"
	"github.com/nvr-ai/go-fire/render"
)

func main() {
	var (
		configPath string
		imagePath  string
		dirPath    string
		outDir     string
		failOnFire bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&imagePath, "image", "", "Image file to check")
	flag.StringVar(&dirPath, "dir", "", "Directory of image frames to check")
	flag.StringVar(&outDir, "out", "", "Directory for annotated frames")
	flag.BoolVar(&failOnFire, "fail-on-fire", false, "Exit with status 2 if any frame contains fire")
	flag.Parse()

	fired, err := run(configPath, imagePath, dirPath, outDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "firecheck: %v\n", err)
		os.Exit(1)
	}
	if failOnFire && fired > 0 {
		os.Exit(2)
	}
}

// framePaths lists the images to check in order.
func framePaths(imagePath, dirPath string) ([]string, error) {
	input, err := capture.ResolveInput(0, "", imagePath, dirPath)
	if err != nil {
		return nil, err
	}
	switch input.Type {
	case capture.InputImage:
		return []string{input.Path}, nil
	case capture.InputDirectory:
		return capture.ListFrames(input.Path)
	default:
		return nil, errors.New("one of -image or -dir is required")
	}
}

func run(configPath, imagePath, dirPath, outDir string) (int, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return 0, err
		}
		cfg = loaded
	}

	paths, err := framePaths(imagePath, dirPath)
	if err != nil {
		return 0, err
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return 0, errors.Wrap(err, "create output directory")
		}
	}

	detector, err := fire.NewDetector(cfg.Detection)
	if err != nil {
		return 0, err
	}
	defer detector.Close()

	fired := 0
	start := time.Now()
	for i, path := range paths {
		img := gocv.IMRead(path, gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			fmt.Printf("%d\t%s\terror: cannot decode\n", i, path)
			continue
		}

		res, err := detector.Detect(img)
		if err != nil {
			img.Close()
			fmt.Printf("%d\t%s\terror: %v\n", i, path, err)
			continue
		}

		verdict := "no fire"
		if res.Detected {
			verdict = "FIRE"
			fired++
		}
		fmt.Printf("%d\t%s\t%s\tregions=%d\tarea=%.0f\n", i, path, verdict, len(res.Regions), res.TotalArea)

		if outDir != "" {
			render.Annotate(&img, res)
			if !gocv.IMWrite(filepath.Join(outDir, filepath.Base(path)), img) {
				fmt.Fprintf(os.Stderr, "could not write annotated %s\n", filepath.Base(path))
			}
		}

		res.Close()
		img.Close()
	}

	elapsed := time.Since(start)
	fps := 0.0
	if elapsed > 0 {
		fps = float64(len(paths)) / elapsed.Seconds()
	}
	fmt.Printf("checked %d frames, %d with fire (%.1f FPS)\n", len(paths), fired, fps)
	return fired, nil
}
