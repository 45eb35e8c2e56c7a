package normalize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/michaelscutari/dsprep/internal/dataset"
	"github.com/michaelscutari/dsprep/internal/entry"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func saveImage(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	var buf bytes.Buffer
	var err error
	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func decode(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

// readTree returns every regular file under root keyed by relative path.
func readTree(t *testing.T, root string) map[string][]byte {
	t.Helper()
	tree := make(map[string][]byte)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return tree
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// catTree builds the two-class example dataset.
func catTree(t *testing.T) string {
	t.Helper()
	in := filepath.Join(t.TempDir(), "dataset")
	saveImage(t, filepath.Join(in, "catA", "img1.jpg"), solid(200, 100, color.RGBA{200, 10, 10, 255}))
	saveImage(t, filepath.Join(in, "catA", "img2.png"), solid(50, 80, color.RGBA{10, 200, 10, 255}))
	saveImage(t, filepath.Join(in, "catB", "img3.jpg"), solid(300, 300, color.RGBA{10, 10, 200, 255}))
	return in
}

func TestRunMirrorsClassTree(t *testing.T) {
	in := catTree(t)
	out := filepath.Join(t.TempDir(), "resized_dataset")

	if err := Dataset(context.Background(), in, out, 128, 128); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := map[string][]string{
		"catA": {"resized_img1.jpg", "resized_img2.png"},
		"catB": {"resized_img3.jpg"},
	}
	classes := listDir(t, out)
	if len(classes) != len(want) {
		t.Fatalf("expected %d class folders, got %v", len(want), classes)
	}
	for class, files := range want {
		got := listDir(t, filepath.Join(out, class))
		if len(got) != len(files) {
			t.Fatalf("%s: expected %v, got %v", class, files, got)
		}
		for i := range files {
			if got[i] != files[i] {
				t.Fatalf("%s: expected %v, got %v", class, files, got)
			}
			b := decode(t, filepath.Join(out, class, got[i])).Bounds()
			if b.Dx() != 128 || b.Dy() != 128 {
				t.Fatalf("%s/%s: size %dx%d, want 128x128", class, got[i], b.Dx(), b.Dy())
			}
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	in := catTree(t)
	out := filepath.Join(t.TempDir(), "out")
	ctx := context.Background()

	if err := Dataset(ctx, in, out, 96, 64); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := readTree(t, out)

	// Stale files from an earlier run must not survive.
	writeFile(t, filepath.Join(out, "catA", "stale.jpg"), []byte("old"))

	if err := Dataset(ctx, in, out, 96, 64); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := readTree(t, out)

	if len(first) != len(second) {
		t.Fatalf("tree changed: %d files then %d", len(first), len(second))
	}
	for path, data := range first {
		if !bytes.Equal(data, second[path]) {
			t.Fatalf("%s differs between runs", path)
		}
	}
}

func TestSmallOpaqueSquareIsCentered(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	red := color.RGBA{255, 0, 0, 255}
	saveImage(t, filepath.Join(in, "c", "sq.png"), solid(32, 32, red))
	out := filepath.Join(t.TempDir(), "out")

	if err := Dataset(context.Background(), in, out, 128, 128); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	img := decode(t, filepath.Join(out, "c", "resized_sq.png"))

	inside := func(x, y int) bool { return x >= 48 && x < 80 && y >= 48 && y < 80 }
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if inside(x, y) {
				if r != 0xffff || g != 0 || b != 0 || a != 0xffff {
					t.Fatalf("pixel (%d,%d) = %v, want red", x, y, img.At(x, y))
				}
			} else if r != 0xffff || g != 0xffff || b != 0xffff {
				t.Fatalf("pixel (%d,%d) = %v, want white border", x, y, img.At(x, y))
			}
		}
	}
}

func TestExactSizeImageIsUnchanged(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	src := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 5), 90, 255})
		}
	}
	saveImage(t, filepath.Join(in, "c", "full.png"), src)
	out := filepath.Join(t.TempDir(), "out")

	if err := Dataset(context.Background(), in, out, 64, 48); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	got := decode(t, filepath.Join(out, "c", "resized_full.png"))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			r1, g1, b1, _ := src.At(x, y).RGBA()
			r2, g2, b2, _ := got.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 {
				t.Fatalf("pixel (%d,%d) changed: %v -> %v", x, y, src.At(x, y), got.At(x, y))
			}
		}
	}
}

func TestTransparentPixelsShowBackground(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	src := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 16; y < 48; y++ {
		for x := 16; x < 48; x++ {
			src.Set(x, y, color.NRGBA{0, 0, 255, 255})
		}
	}
	saveImage(t, filepath.Join(in, "c", "logo.png"), src)
	out := filepath.Join(t.TempDir(), "out")

	if err := Dataset(context.Background(), in, out, 128, 128); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	img := decode(t, filepath.Join(out, "c", "resized_logo.png"))

	// Source (0,0) lands at the offset (32,32) and is fully transparent.
	if r, g, b, _ := img.At(32, 32).RGBA(); r != 0xffff || g != 0xffff || b != 0xffff {
		t.Fatalf("transparent pixel = %v, want white", img.At(32, 32))
	}
	if r, g, b, _ := img.At(64, 64).RGBA(); r != 0 || g != 0 || b != 0xffff {
		t.Fatalf("opaque pixel = %v, want blue", img.At(64, 64))
	}
}

func corruptTree(t *testing.T) string {
	t.Helper()
	in := filepath.Join(t.TempDir(), "dataset")
	saveImage(t, filepath.Join(in, "catA", "img1.jpg"), solid(40, 40, color.Gray{Y: 100}))
	saveImage(t, filepath.Join(in, "catA", "img2.png"), solid(40, 20, color.Gray{Y: 200}))
	writeFile(t, filepath.Join(in, "catB", "a_broken.jpg"), []byte("this is not a jpeg"))
	saveImage(t, filepath.Join(in, "catB", "b_fine.jpg"), solid(10, 10, color.Black))
	return in
}

func TestCorruptFileAbortsRun(t *testing.T) {
	in := corruptTree(t)
	out := filepath.Join(t.TempDir(), "out")

	report, err := NewNormalizer(DefaultOptions()).Run(context.Background(), in, out)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %T: %v", err, err)
	}
	if filepath.Base(decErr.Path) != "a_broken.jpg" {
		t.Fatalf("unexpected failing path %s", decErr.Path)
	}

	if got := listDir(t, filepath.Join(out, "catA")); len(got) != 2 {
		t.Fatalf("catA should be complete, got %v", got)
	}
	if got := listDir(t, filepath.Join(out, "catB")); len(got) != 0 {
		t.Fatalf("nothing in catB should be written, got %v", got)
	}

	if report == nil {
		t.Fatalf("expected a partial report")
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(report.Failures))
	}
	if len(report.Classes) != 2 || report.Classes[1].Failed != 1 || report.Classes[1].Total != 1 {
		t.Fatalf("unexpected class summaries: %+v", report.Classes)
	}
}

func TestSkipPolicyContinues(t *testing.T) {
	in := corruptTree(t)
	out := filepath.Join(t.TempDir(), "out")

	opts := DefaultOptions().WithPolicy(PolicySkip)
	report, err := NewNormalizer(opts).Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("skip run: %v", err)
	}
	if got := listDir(t, filepath.Join(out, "catB")); len(got) != 1 || got[0] != "resized_b_fine.jpg" {
		t.Fatalf("catB: unexpected output %v", got)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(report.Failures))
	}
	catB := report.Classes[1]
	if catB.Class != "catB" || catB.OK != 1 || catB.Failed != 1 {
		t.Fatalf("unexpected catB summary: %+v", catB)
	}
	if report.Count(entry.StatusOK) != 3 {
		t.Fatalf("expected 3 ok items, got %d", report.Count(entry.StatusOK))
	}
}

func TestSkipPolicyMaxErrors(t *testing.T) {
	in := corruptTree(t)
	out := filepath.Join(t.TempDir(), "out")

	opts := DefaultOptions().WithPolicy(PolicySkip).WithMaxErrors(1)
	_, err := NewNormalizer(opts).Run(context.Background(), in, out)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("expected ErrTooManyFailures, got %v", err)
	}
}

func TestHiddenEntriesSkippedWithExclude(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	saveImage(t, filepath.Join(in, "c", "a.jpg"), solid(10, 10, color.White))
	writeFile(t, filepath.Join(in, "c", ".DS_Store"), []byte{0, 1, 2})
	writeFile(t, filepath.Join(in, ".git", "HEAD"), []byte("ref"))
	out := filepath.Join(t.TempDir(), "out")

	opts := DefaultOptions()
	if err := opts.AddExcludePattern(`^\.`); err != nil {
		t.Fatalf("add pattern: %v", err)
	}
	report, err := NewNormalizer(opts).Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := listDir(t, out); len(got) != 1 || got[0] != "c" {
		t.Fatalf("hidden class folder should be excluded, got %v", got)
	}
	if got := listDir(t, filepath.Join(out, "c")); len(got) != 1 {
		t.Fatalf("expected only a.jpg output, got %v", got)
	}
	if report.Count(entry.StatusSkipped) != 1 {
		t.Fatalf("expected 1 skipped item, got %d", report.Count(entry.StatusSkipped))
	}
}

func TestHiddenFilesProcessedByDefault(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	saveImage(t, filepath.Join(in, "c", "a.jpg"), solid(10, 10, color.White))
	saveImage(t, filepath.Join(in, "c", ".b.png"), solid(10, 10, color.Black))
	out := filepath.Join(t.TempDir(), "out")

	report, err := NewNormalizer(nil).Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	got := listDir(t, filepath.Join(out, "c"))
	if len(got) != 2 || got[0] != "resized_.b.png" || got[1] != "resized_a.jpg" {
		t.Fatalf("unexpected output %v", got)
	}
	if report.Count(entry.StatusOK) != 2 {
		t.Fatalf("expected 2 ok items, got %d", report.Count(entry.StatusOK))
	}

	writeFile(t, filepath.Join(in, "c", ".DS_Store"), []byte{0, 1, 2})
	_, err = NewNormalizer(nil).Run(context.Background(), in, out)
	var decErr *DecodeError
	if !errors.As(err, &decErr) || filepath.Base(decErr.Path) != ".DS_Store" {
		t.Fatalf("expected DecodeError for .DS_Store, got %v", err)
	}
}

func TestRunFollowsSymlinks(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "in")
	ext := filepath.Join(tmp, "elsewhere")
	saveImage(t, filepath.Join(in, "c", "a.png"), solid(10, 10, color.White))
	saveImage(t, filepath.Join(ext, "b.png"), solid(20, 10, color.Black))
	saveImage(t, filepath.Join(ext, "cls", "r.jpg"), solid(10, 30, color.Black))
	if err := os.MkdirAll(filepath.Join(in, "c", "nested"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	links := map[string]string{
		filepath.Join(in, "c", "b.png"):      filepath.Join(ext, "b.png"),
		filepath.Join(in, "c", "broken.png"): filepath.Join(ext, "missing.png"),
		filepath.Join(in, "linked"):          filepath.Join(ext, "cls"),
	}
	for link, target := range links {
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
	}
	out := filepath.Join(tmp, "out")

	report, err := NewNormalizer(DefaultOptions().WithSize(16, 16)).Run(context.Background(), in, out)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	got := listDir(t, filepath.Join(out, "c"))
	if len(got) != 2 || got[0] != "resized_a.png" || got[1] != "resized_b.png" {
		t.Fatalf("unexpected class c output %v", got)
	}
	img := decode(t, filepath.Join(out, "linked", "resized_r.jpg"))
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Fatalf("linked class output is %dx%d", b.Dx(), b.Dy())
	}
	if fi, err := os.Lstat(filepath.Join(out, "linked")); err != nil || fi.Mode()&os.ModeSymlink != 0 {
		t.Fatalf("linked class should be mirrored as a real folder: %v", err)
	}

	skipped := make(map[string]string)
	for _, it := range report.Items {
		if it.Status == entry.StatusSkipped {
			skipped[it.Name] = it.Reason
		}
	}
	if len(skipped) != 2 || skipped["nested"] != "directory" {
		t.Fatalf("unexpected skipped items %v", skipped)
	}
	if !strings.HasPrefix(skipped["broken.png"], "broken link") {
		t.Fatalf("broken link not recorded: %v", skipped)
	}
	if c := report.Classes[0]; c.Class != "c" || c.Total != 4 || c.OK != 2 || c.Skipped != 2 {
		t.Fatalf("unexpected class c summary: %+v", c)
	}
}

func TestRunOutputUnderFileIsIOError(t *testing.T) {
	in := catTree(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	writeFile(t, blocker, []byte("not a directory"))

	err := Dataset(context.Background(), in, filepath.Join(blocker, "out"), 16, 16)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %T: %v", err, err)
	}
	if ioErr.Op != "remove" && ioErr.Op != "create" {
		t.Fatalf("unexpected op %q", ioErr.Op)
	}
	if data, err := os.ReadFile(blocker); err != nil || string(data) != "not a directory" {
		t.Fatalf("blocking file was changed: %v", err)
	}
}

func TestWorkerWriteFailureIsIOError(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	saveImage(t, filepath.Join(in, "c", "a.png"), solid(10, 10, color.White))
	outDir := filepath.Join(t.TempDir(), "gone", "c")

	class := dataset.Class{Name: "c", Dir: filepath.Join(in, "c"), Files: []string{"a.png"}}
	res := newWorker(DefaultOptions().WithSize(8, 8)).process(class, outDir, "a.png")

	var ioErr *IOError
	if !errors.As(res.err, &ioErr) || ioErr.Op != "write" {
		t.Fatalf("expected write IOError, got %v", res.err)
	}
	if ioErr.Path != filepath.Join(outDir, "resized_a.png") {
		t.Fatalf("unexpected path %s", ioErr.Path)
	}
	if res.item.Status != entry.StatusFailed {
		t.Fatalf("expected failed item, got %s", res.item.Status)
	}
	if _, err := os.Stat(ioErr.Path); !os.IsNotExist(err) {
		t.Fatalf("no output should be left behind")
	}
}

func TestRunRejectsBadPaths(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()

	var pathErr *PathError
	err := Dataset(ctx, filepath.Join(tmp, "missing"), filepath.Join(tmp, "out"), 8, 8)
	if !errors.As(err, &pathErr) {
		t.Fatalf("missing input: expected PathError, got %v", err)
	}

	file := filepath.Join(tmp, "file.jpg")
	saveImage(t, file, solid(4, 4, color.White))
	err = Dataset(ctx, file, filepath.Join(tmp, "out"), 8, 8)
	if !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("file input: expected ErrNotDirectory, got %v", err)
	}

	in := catTree(t)
	for _, out := range []string{in, filepath.Join(in, "resized"), filepath.Dir(in)} {
		err = Dataset(ctx, in, out, 8, 8)
		if !errors.Is(err, ErrOverlap) {
			t.Fatalf("output %s: expected ErrOverlap, got %v", out, err)
		}
	}
	if _, err := os.Stat(filepath.Join(in, "catA", "img1.jpg")); err != nil {
		t.Fatalf("input was damaged: %v", err)
	}

	if err := Dataset(ctx, in, filepath.Join(tmp, "out"), 0, 8); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestRunRejectsUnmappedClass(t *testing.T) {
	in := catTree(t)
	out := filepath.Join(t.TempDir(), "out")
	labels := dataset.BuildLabels([]string{"catA"})

	_, err := NewNormalizer(DefaultOptions().WithLabels(labels)).Run(context.Background(), in, out)
	var pathErr *PathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("expected PathError, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("output should not be created when labels are invalid")
	}
}

func TestWorkersProduceSameTree(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	for i, size := range []image.Point{{300, 200}, {20, 90}, {128, 128}, {64, 300}, {5, 5}, {500, 499}} {
		name := filepath.Join(in, "c", string(rune('a'+i))+".png")
		saveImage(t, name, solid(size.X, size.Y, color.RGBA{uint8(i * 40), 80, 160, 255}))
	}
	ctx := context.Background()

	seqOut := filepath.Join(t.TempDir(), "seq")
	if _, err := NewNormalizer(DefaultOptions()).Run(ctx, in, seqOut); err != nil {
		t.Fatalf("sequential: %v", err)
	}
	parOut := filepath.Join(t.TempDir(), "par")
	report, err := NewNormalizer(DefaultOptions().WithWorkers(4)).Run(ctx, in, parOut)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	seq, par := readTree(t, seqOut), readTree(t, parOut)
	if len(seq) != 6 || len(par) != 6 {
		t.Fatalf("expected 6 files each, got %d and %d", len(seq), len(par))
	}
	for path, data := range seq {
		if !bytes.Equal(data, par[path]) {
			t.Fatalf("%s differs between sequential and parallel runs", path)
		}
	}
	for i := 1; i < len(report.Items); i++ {
		if report.Items[i-1].Name > report.Items[i].Name {
			t.Fatalf("report items out of order: %s before %s", report.Items[i-1].Name, report.Items[i].Name)
		}
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	in := catTree(t)
	out := filepath.Join(t.TempDir(), "out")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNormalizer(nil).Run(ctx, in, out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type recordingSink struct {
	classes   []entry.Class
	items     []entry.Item
	summaries []entry.ClassSummary
	errors    []entry.RunError
}

func (s *recordingSink) Class(c entry.Class)          { s.classes = append(s.classes, c) }
func (s *recordingSink) Item(it entry.Item)           { s.items = append(s.items, it) }
func (s *recordingSink) Summary(c entry.ClassSummary) { s.summaries = append(s.summaries, c) }
func (s *recordingSink) Error(e entry.RunError)       { s.errors = append(s.errors, e) }

func TestSinkAndProgress(t *testing.T) {
	in := catTree(t)
	out := filepath.Join(t.TempDir(), "out")

	sink := &recordingSink{}
	var stages []string
	var lastDone, lastTotal int64
	n := NewNormalizer(nil)
	n.SetSink(sink)
	n.SetStageFunc(func(s string) { stages = append(stages, s) })
	n.SetProgressFunc(func(done, failed, total int64) {
		lastDone, lastTotal = done, total
	})

	if _, err := n.Run(context.Background(), in, out); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if len(sink.classes) != 2 || sink.classes[0].Name != "catA" || sink.classes[1].Label != 1 {
		t.Fatalf("unexpected classes: %+v", sink.classes)
	}
	if sink.classes[0].Expected != 2 {
		t.Fatalf("catA should expect 2 files, got %d", sink.classes[0].Expected)
	}
	if len(sink.items) != 3 || len(sink.summaries) != 2 || len(sink.errors) != 0 {
		t.Fatalf("unexpected sink counts: items=%d summaries=%d errors=%d", len(sink.items), len(sink.summaries), len(sink.errors))
	}
	for _, it := range sink.items {
		if it.Status != entry.StatusOK || it.Bytes == 0 || it.Output == "" {
			t.Fatalf("unexpected item: %+v", it)
		}
	}
	if lastDone != 3 || lastTotal != 3 {
		t.Fatalf("progress ended at %d/%d", lastDone, lastTotal)
	}
	if len(stages) != 3 || stages[0] != "discover" || stages[2] != "normalize" {
		t.Fatalf("unexpected stages: %v", stages)
	}
}
