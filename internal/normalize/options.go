package normalize

import (
	"fmt"
	"image/color"
	"regexp"
	"strings"

	"github.com/michaelscutari/dsprep/internal/dataset"
	"github.com/michaelscutari/dsprep/internal/imaging"
)

// Policy decides what a failed file does to the run.
type Policy string

const (
	// PolicyAbort stops the run at the first failed file.
	PolicyAbort Policy = "abort"
	// PolicySkip records the failure and moves on.
	PolicySkip Policy = "skip"
)

// ParsePolicy accepts "abort" or "skip".
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAbort, PolicySkip:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown failure policy %q (want abort or skip)", s)
}

// Options configures a normalization run.
type Options struct {
	// Width and Height are the canvas size every image is padded to.
	Width  int
	Height int

	// Prefix is prepended to each source file name in the output tree.
	Prefix string

	// Background fills the canvas around the thumbnail.
	Background color.Color

	// Workers is the number of files of one class processed at once.
	// Classes are always processed one after another.
	Workers int

	// OnError is the failure policy.
	OnError Policy

	// MaxErrors aborts a skip-policy run once this many files have failed.
	// Zero means unlimited.
	MaxErrors int

	// ExcludePatterns are regular expressions matched against class folder
	// and file names. Matching folders are not classes; matching files are
	// recorded as skipped and not written. `^\.` leaves out hidden entries.
	ExcludePatterns []*regexp.Regexp

	// Labels maps class folders to label indices. Nil builds one from the
	// sorted folder names.
	Labels *dataset.LabelMap
}

// DefaultOptions returns the 128x128, white background, sequential
// fail-fast configuration.
func DefaultOptions() *Options {
	return &Options{
		Width:      128,
		Height:     128,
		Prefix:     "resized_",
		Background: imaging.White,
		Workers:    1,
		OnError:    PolicyAbort,
	}
}

// WithSize sets the canvas size.
func (o *Options) WithSize(width, height int) *Options {
	o.Width = width
	o.Height = height
	return o
}

// WithPrefix sets the output name prefix.
func (o *Options) WithPrefix(prefix string) *Options {
	o.Prefix = prefix
	return o
}

// WithBackground sets the canvas color.
func (o *Options) WithBackground(c color.Color) *Options {
	o.Background = c
	return o
}

// WithWorkers sets the number of workers.
func (o *Options) WithWorkers(n int) *Options {
	o.Workers = n
	return o
}

// WithPolicy sets the failure policy.
func (o *Options) WithPolicy(p Policy) *Options {
	o.OnError = p
	return o
}

// WithMaxErrors sets the maximum failure count for the skip policy.
func (o *Options) WithMaxErrors(n int) *Options {
	o.MaxErrors = n
	return o
}

// WithLabels sets an explicit label map.
func (o *Options) WithLabels(m *dataset.LabelMap) *Options {
	o.Labels = m
	return o
}

// ClearExcludePatterns drops every exclude pattern.
func (o *Options) ClearExcludePatterns() *Options {
	o.ExcludePatterns = nil
	return o
}

// AddExcludePattern adds a pattern to exclude.
func (o *Options) AddExcludePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	o.ExcludePatterns = append(o.ExcludePatterns, re)
	return nil
}

// ShouldExclude reports whether a class folder or file name matches any
// exclude pattern.
func (o *Options) ShouldExclude(name string) bool {
	for _, re := range o.ExcludePatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (o *Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", o.Width, o.Height)
	}
	if o.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", o.Workers)
	}
	if _, err := ParsePolicy(string(o.OnError)); err != nil {
		return err
	}
	if o.MaxErrors < 0 {
		return fmt.Errorf("max errors must not be negative, got %d", o.MaxErrors)
	}
	if strings.ContainsAny(o.Prefix, `/\`) {
		return fmt.Errorf("prefix %q contains a path separator", o.Prefix)
	}
	if o.Background == nil {
		o.Background = imaging.White
	}
	return nil
}
