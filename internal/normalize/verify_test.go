package normalize

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVerifyCleanTree(t *testing.T) {
	in := catTree(t)
	out := filepath.Join(t.TempDir(), "out")
	ctx := context.Background()

	if err := Dataset(ctx, in, out, 128, 128); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	violations, err := Verify(ctx, in, out, DefaultOptions())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}
}

func TestVerifyReportsProblems(t *testing.T) {
	in := catTree(t)
	out := filepath.Join(t.TempDir(), "out")
	ctx := context.Background()

	if err := Dataset(ctx, in, out, 128, 128); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if err := os.Remove(filepath.Join(out, "catA", "resized_img1.jpg")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	saveImage(t, filepath.Join(out, "catB", "resized_img3.jpg"), solid(10, 10, color.White))
	saveImage(t, filepath.Join(out, "catC", "resized_x.jpg"), solid(128, 128, color.White))

	violations, err := Verify(ctx, in, out, DefaultOptions())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %v", violations)
	}

	problems := make(map[string]string)
	for _, v := range violations {
		problems[filepath.Base(v.Path)] = v.Problem
	}
	if problems["resized_img1.jpg"] != "output missing" {
		t.Fatalf("missing output not reported: %v", violations)
	}
	if !strings.HasPrefix(problems["resized_img3.jpg"], "size 10x10") {
		t.Fatalf("wrong size not reported: %v", violations)
	}
	if problems["catC"] != "class folder has no source" {
		t.Fatalf("extra class not reported: %v", violations)
	}
}

func TestVerifyMissingOutput(t *testing.T) {
	in := catTree(t)
	_, err := Verify(context.Background(), in, filepath.Join(t.TempDir(), "nope"), DefaultOptions().WithSize(8, 8))
	if err == nil {
		t.Fatalf("expected error for missing output")
	}
}

func TestVerifyUsesRunExcludes(t *testing.T) {
	in := catTree(t)
	writeFile(t, filepath.Join(in, "catA", ".hidden"), []byte("x"))
	writeFile(t, filepath.Join(in, "catA", "notes.txt"), []byte("x"))
	saveImage(t, filepath.Join(in, ".cache", "thumb.png"), solid(4, 4, color.White))
	out := filepath.Join(t.TempDir(), "out")
	ctx := context.Background()

	opts := DefaultOptions()
	for _, p := range []string{`^\.`, `\.txt$`} {
		if err := opts.AddExcludePattern(p); err != nil {
			t.Fatalf("add pattern: %v", err)
		}
	}
	if _, err := NewNormalizer(opts).Run(ctx, in, out); err != nil {
		t.Fatalf("normalize: %v", err)
	}

	violations, err := Verify(ctx, in, out, opts)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}

	// Without the patterns the skipped entries show up as missing outputs.
	violations, err = Verify(ctx, in, out, DefaultOptions())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	problems := make(map[string]string)
	for _, v := range violations {
		problems[filepath.Base(v.Path)] = v.Problem
	}
	if problems[".cache"] != "class folder missing" || problems["resized_notes.txt"] != "output missing" {
		t.Fatalf("unexpected violations without excludes: %v", violations)
	}
}
