package normalize

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/michaelscutari/dsprep/internal/dataset"
	"github.com/michaelscutari/dsprep/internal/imaging"
)

// Violation is one way a normalized tree differs from its source.
type Violation struct {
	Path    string
	Problem string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Problem)
}

// Verify checks a finished output tree against its input under opts: the
// same class folders, one <prefix><name> output per source file and every
// output exactly opts.Width x opts.Height. Class folders and files matched
// by the exclude patterns are not expected in the output, and neither are
// entries a run records as skipped. The error is reserved for trees that
// cannot be read at all.
func Verify(ctx context.Context, input, output string, opts *Options) ([]Violation, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	width, height, prefix := opts.Width, opts.Height, opts.Prefix

	srcClasses, err := dataset.Discover(input, opts.ShouldExclude)
	if err != nil {
		return nil, &PathError{Path: input, Err: err}
	}
	outClasses, err := dataset.Discover(output, nil)
	if err != nil {
		return nil, &PathError{Path: output, Err: err}
	}

	outByName := make(map[string]dataset.Class, len(outClasses))
	for _, c := range outClasses {
		outByName[c.Name] = c
	}

	var violations []Violation
	seen := make(map[string]bool, len(srcClasses))
	for _, src := range srcClasses {
		if err := ctx.Err(); err != nil {
			return violations, err
		}
		seen[src.Name] = true
		out, ok := outByName[src.Name]
		if !ok {
			violations = append(violations, Violation{Path: filepath.Join(output, src.Name), Problem: "class folder missing"})
			continue
		}

		want := make(map[string]bool, len(src.Files))
		for _, f := range src.Files {
			if opts.ShouldExclude(f) {
				continue
			}
			want[prefix+f] = true
		}
		have := make(map[string]bool, len(out.Files))
		for _, f := range out.Files {
			have[f] = true
		}

		for _, name := range sortedKeys(want) {
			if !have[name] {
				violations = append(violations, Violation{Path: filepath.Join(out.Dir, name), Problem: "output missing"})
			}
		}
		for _, name := range out.Files {
			path := filepath.Join(out.Dir, name)
			if !want[name] {
				violations = append(violations, Violation{Path: path, Problem: "no matching source file"})
				continue
			}
			cfg, _, err := imaging.DecodeConfig(path)
			if err != nil {
				violations = append(violations, Violation{Path: path, Problem: fmt.Sprintf("unreadable: %v", err)})
				continue
			}
			if cfg.Width != width || cfg.Height != height {
				violations = append(violations, Violation{
					Path:    path,
					Problem: fmt.Sprintf("size %dx%d, want %dx%d", cfg.Width, cfg.Height, width, height),
				})
			}
		}
	}

	for _, out := range outClasses {
		if !seen[out.Name] {
			violations = append(violations, Violation{Path: out.Dir, Problem: "class folder has no source"})
		}
	}

	return violations, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
