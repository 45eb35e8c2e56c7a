package normalize

import (
	"bufio"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelscutari/dsprep/internal/dataset"
	"github.com/michaelscutari/dsprep/internal/entry"
	"github.com/michaelscutari/dsprep/internal/imaging"
	"github.com/michaelscutari/dsprep/internal/logging"
)

// result pairs an item with the typed error that failed it, if any.
type result struct {
	item entry.Item
	err  error
}

// worker turns one source file into one normalized output file.
type worker struct {
	opts *Options
}

func newWorker(opts *Options) *worker {
	return &worker{opts: opts}
}

// process decodes class.Dir/name, normalizes it and writes
// outDir/<prefix><name>. It never returns a partially written file.
func (w *worker) process(class dataset.Class, outDir, name string) result {
	start := time.Now()
	src := filepath.Join(class.Dir, name)
	it := entry.Item{Class: class.Name, Name: name}

	fail := func(err error) result {
		it.Status = entry.StatusFailed
		it.Reason = err.Error()
		it.Duration = time.Since(start)
		return result{item: it, err: err}
	}

	img, format, err := imaging.DecodeFile(src)
	if err != nil {
		return fail(&DecodeError{Path: src, Err: err})
	}
	b := img.Bounds()
	it.Format = format
	it.SrcW = b.Dx()
	it.SrcH = b.Dy()
	it.Alpha = imaging.HasAlpha(img)

	canvas := imaging.Normalize(img, w.opts.Width, w.opts.Height, w.opts.Background)

	outName := w.opts.Prefix + name
	outFormat, ok := imaging.FormatForName(outName)
	if !ok {
		outFormat = format
	}
	dst := filepath.Join(outDir, outName)
	size, err := writeImage(dst, canvas, outFormat)
	if err != nil {
		return fail(&IOError{Op: "write", Path: dst, Err: err})
	}

	it.Output = outName
	it.Status = entry.StatusOK
	it.Bytes = size
	it.Duration = time.Since(start)

	logging.Debug().
		Str("class", class.Name).
		Str("file", name).
		Str("format", format).
		Int("src_w", it.SrcW).
		Int("src_h", it.SrcH).
		Bool("alpha", it.Alpha).
		Dur("took", it.Duration).
		Msg("normalized")

	return result{item: it}
}

// writeImage encodes img to path and returns the file size. The file is
// removed again if anything fails.
func writeImage(path string, img image.Image, format string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(f)
	err = imaging.Encode(bw, img, format)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
