package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/michaelscutari/dsprep/internal/entry"
	"github.com/michaelscutari/dsprep/internal/imaging"
	"github.com/michaelscutari/dsprep/internal/normalize"
	"github.com/michaelscutari/dsprep/internal/snapshot"

	_ "modernc.org/sqlite"
)

func main() {
	dir := flag.String("dir", "", "Work directory (default a temp dir, removed afterwards)")
	classes := flag.Int("classes", 4, "Synthetic class folders")
	images := flag.Int("images", 250, "Images per class")
	maxSide := flag.Int("max-side", 640, "Largest synthetic image side")
	size := flag.Int("size", 128, "Canvas width and height")
	workerList := flag.String("workers", "1,2,4,8", "Comma separated worker counts to time")
	manifest := flag.Bool("manifest", false, "Record each run in a SQLite manifest")
	seed := flag.Int64("seed", 0, "Generator seed (0 = time-based)")
	flag.Parse()

	workers, err := parseWorkers(*workerList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "workers: %v\n", err)
		os.Exit(1)
	}

	root := *dir
	if root == "" {
		root, err = os.MkdirTemp("", "dsprepbench-")
		if err != nil {
			fmt.Fprintf(os.Stderr, "tempdir error: %v\n", err)
			os.Exit(1)
		}
		defer os.RemoveAll(root)
	}
	input := filepath.Join(root, "dataset")
	output := filepath.Join(root, "resized_dataset")

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	start := time.Now()
	n, err := generate(input, *classes, *images, *maxSide, rand.New(rand.NewSource(*seed)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("dir=%s classes=%d images=%d size=%d manifest=%t\n", root, *classes, n, *size, *manifest)
	fmt.Printf("generate: %v\n", time.Since(start))

	for _, w := range workers {
		opts := normalize.DefaultOptions().WithSize(*size, *size).WithWorkers(w)

		start = time.Now()
		var report *normalize.Report
		if *manifest {
			mgr := snapshot.NewManager(filepath.Join(root, "manifests"), 1)
			var res *snapshot.Result
			res, err = mgr.RunNormalize(context.Background(), input, output, opts)
			if res != nil {
				report = res.Report
			}
		} else {
			report, err = normalize.NewNormalizer(opts).Run(context.Background(), input, output)
		}
		elapsed := time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "workers=%d run error: %v\n", w, err)
			os.Exit(1)
		}

		written := report.Count(entry.StatusOK)
		fmt.Printf("workers=%-3d total=%v written=%d", w, elapsed.Round(time.Millisecond), written)
		if elapsed.Seconds() > 0 {
			fmt.Printf(" throughput=%.0f images/sec", float64(written)/elapsed.Seconds())
		}
		fmt.Println()
	}
}

func parseWorkers(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid worker count %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no worker counts")
	}
	return out, nil
}

// generate writes classes x perClass random images, alternating JPEG and
// PNG with an alpha channel.
func generate(root string, classes, perClass, maxSide int, rng *rand.Rand) (int, error) {
	if maxSide < 2 {
		maxSide = 2
	}
	count := 0
	for c := 0; c < classes; c++ {
		dir := filepath.Join(root, fmt.Sprintf("class%03d", c))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return count, err
		}
		for i := 0; i < perClass; i++ {
			w := 1 + rng.Intn(maxSide)
			h := 1 + rng.Intn(maxSide)
			img := image.NewNRGBA(image.Rect(0, 0, w, h))
			fill := color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 0xff}
			name := fmt.Sprintf("img%05d.jpg", i)
			if i%2 == 1 {
				fill.A = uint8(rng.Intn(256))
				name = fmt.Sprintf("img%05d.png", i)
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					img.SetNRGBA(x, y, fill)
				}
			}
			if err := save(filepath.Join(dir, name), img); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func save(path string, img image.Image) error {
	format, _ := imaging.FormatForName(path)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := imaging.Encode(f, img, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
