// Package normalize turns a folder-per-class image dataset into a mirrored
// tree of fixed-size images: every source is thumbnailed to fit the canvas,
// centered on a solid background and written as <prefix><name>.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/michaelscutari/dsprep/internal/dataset"
	"github.com/michaelscutari/dsprep/internal/entry"
	"github.com/michaelscutari/dsprep/internal/logging"
	"github.com/michaelscutari/dsprep/internal/metrics"
	"github.com/michaelscutari/dsprep/internal/pathutil"
	"github.com/michaelscutari/dsprep/internal/rollup"
)

// ProgressFunc is called after every file with the running totals.
type ProgressFunc func(done, failed, total int64)

// StageFunc is called when the run moves to a new stage.
type StageFunc func(stage string)

// Sink receives results as the run produces them. All calls are made from
// the goroutine running Normalizer.Run, in the order events happen: a
// class is announced before any of its items.
type Sink interface {
	Class(c entry.Class)
	Item(it entry.Item)
	Summary(s entry.ClassSummary)
	Error(e entry.RunError)
}

// Report is the outcome of a run. A run that stops early still returns the
// report of what it did.
type Report struct {
	Classes  []entry.ClassSummary
	Items    []entry.Item
	Failures []error
	Start    time.Time
	End      time.Time
}

// Count returns the number of items with status s.
func (r *Report) Count(s entry.Status) int64 {
	var n int64
	for _, it := range r.Items {
		if it.Status == s {
			n++
		}
	}
	return n
}

// Bytes returns the total size of the written images.
func (r *Report) Bytes() int64 {
	var n int64
	for _, c := range r.Classes {
		n += c.Bytes
	}
	return n
}

// Normalizer runs the dataset normalization.
type Normalizer struct {
	opts     *Options
	sink     Sink
	progress ProgressFunc
	stage    StageFunc

	done   int64
	failed int64
	total  int64
}

// NewNormalizer creates a normalizer. Nil options mean DefaultOptions.
func NewNormalizer(opts *Options) *Normalizer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Normalizer{opts: opts}
}

// SetSink attaches a result sink.
func (n *Normalizer) SetSink(s Sink) {
	n.sink = s
}

// SetProgressFunc sets a callback for progress updates.
func (n *Normalizer) SetProgressFunc(f ProgressFunc) {
	n.progress = f
}

// SetStageFunc sets a callback for stage updates.
func (n *Normalizer) SetStageFunc(f StageFunc) {
	n.stage = f
}

// Dataset normalizes input into output at width x height with the default
// options: white background, "resized_" prefix, stop at the first failure.
func Dataset(ctx context.Context, input, output string, width, height int) error {
	_, err := NewNormalizer(DefaultOptions().WithSize(width, height)).Run(ctx, input, output)
	return err
}

// Run normalizes every class folder of input into output. The output
// directory is removed and rebuilt. Classes are handled in name order and
// each class is finished before the next one starts.
func (n *Normalizer) Run(ctx context.Context, input, output string) (*Report, error) {
	if err := n.opts.validate(); err != nil {
		return nil, err
	}
	input = pathutil.Normalize(input)
	output = pathutil.Normalize(output)

	info, err := os.Stat(input)
	if err != nil {
		return nil, &PathError{Path: input, Err: err}
	}
	if !info.IsDir() {
		return nil, &PathError{Path: input, Err: ErrNotDirectory}
	}
	overlap, err := pathutil.Overlaps(input, output)
	if err != nil {
		return nil, &PathError{Path: output, Err: err}
	}
	if overlap {
		return nil, &PathError{Path: output, Err: ErrOverlap}
	}

	n.setStage("discover")
	classes, err := dataset.Discover(input, n.opts.ShouldExclude)
	if err != nil {
		return nil, &PathError{Path: input, Err: err}
	}
	names := dataset.Names(classes)
	labels := n.opts.Labels
	if labels == nil {
		labels = dataset.BuildLabels(names)
	}
	if err := labels.Validate(names); err != nil {
		return nil, &PathError{Path: input, Err: err}
	}

	n.setStage("prepare")
	if err := os.RemoveAll(output); err != nil {
		return nil, n.fatal(&IOError{Op: "remove", Path: output, Err: err})
	}
	if err := os.MkdirAll(output, 0755); err != nil {
		return nil, n.fatal(&IOError{Op: "create", Path: output, Err: err})
	}

	n.done, n.failed, n.total = 0, 0, 0
	for _, c := range classes {
		n.total += int64(len(c.Files) + len(c.Ignored))
	}

	logging.Info().
		Str("input", input).
		Str("output", output).
		Int("classes", len(classes)).
		Int64("files", n.total).
		Int("width", n.opts.Width).
		Int("height", n.opts.Height).
		Str("on_error", string(n.opts.OnError)).
		Msg("normalize started")

	report := &Report{Start: time.Now()}
	agg := rollup.NewAggregator()

	n.setStage("normalize")
	var runErr error
	for _, c := range classes {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		label, _ := labels.Lookup(c.Name)
		if runErr = n.runClass(ctx, c, label, output, agg, report); runErr != nil {
			break
		}
	}
	for _, sum := range agg.Flush() {
		n.addSummary(report, sum)
	}
	report.End = time.Now()
	metrics.RunDuration.Set(report.End.Sub(report.Start).Seconds())

	logging.Info().
		Int64("ok", report.Count(entry.StatusOK)).
		Int64("skipped", report.Count(entry.StatusSkipped)).
		Int64("failed", report.Count(entry.StatusFailed)).
		Dur("took", report.End.Sub(report.Start)).
		Msg("normalize finished")

	return report, runErr
}

func (n *Normalizer) runClass(ctx context.Context, c dataset.Class, label int, output string, agg *rollup.Aggregator, report *Report) error {
	outDir := filepath.Join(output, c.Name)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return n.fatal(&IOError{Op: "create", Path: outDir, Err: err})
	}

	logging.Info().Str("class", c.Name).Int("label", label).Int("files", len(c.Files)).Msg("normalizing class")

	cls := entry.Class{
		Name:      c.Name,
		Label:     label,
		SourceDir: c.Dir,
		OutputDir: outDir,
		Expected:  len(c.Files) + len(c.Ignored),
	}
	if n.sink != nil {
		n.sink.Class(cls)
	}
	sum, complete, err := agg.Expect(cls)
	if err != nil {
		return err
	}
	if complete {
		n.addSummary(report, sum)
	}

	first := len(report.Items)
	defer func() {
		// Workers finish in any order; keep the report in name order.
		items := report.Items[first:]
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	}()

	for _, ig := range c.Ignored {
		it := entry.Item{Class: c.Name, Name: ig.Name, Status: entry.StatusSkipped, Reason: ig.Reason}
		if err := n.record(report, agg, it, nil); err != nil {
			return err
		}
	}

	work := make([]string, 0, len(c.Files))
	for _, name := range c.Files {
		if n.opts.ShouldExclude(name) {
			it := entry.Item{Class: c.Name, Name: name, Status: entry.StatusSkipped, Reason: "excluded"}
			if err := n.record(report, agg, it, nil); err != nil {
				return err
			}
			continue
		}
		work = append(work, name)
	}

	w := newWorker(n.opts)
	results := make(chan result, n.opts.Workers)
	inFlight, next := 0, 0
	var stopErr error

	// Dispatch only while fewer than Workers files are in flight and nothing
	// has failed, so a single worker stops right after the failing file.
	for inFlight > 0 || (stopErr == nil && next < len(work)) {
		if stopErr == nil && next < len(work) && inFlight < n.opts.Workers {
			if err := ctx.Err(); err != nil {
				stopErr = err
				continue
			}
			name := work[next]
			next++
			inFlight++
			go func() {
				results <- w.process(c, outDir, name)
			}()
			continue
		}

		res := <-results
		inFlight--
		if err := n.record(report, agg, res.item, res.err); err != nil && stopErr == nil {
			stopErr = err
		}
	}

	return stopErr
}

// record books one item and applies the failure policy. A non-nil return
// stops the run.
func (n *Normalizer) record(report *Report, agg *rollup.Aggregator, it entry.Item, itemErr error) error {
	report.Items = append(report.Items, it)
	if n.sink != nil {
		n.sink.Item(it)
	}
	metrics.RecordImage(it.Status.String(), it.Bytes, it.Duration)

	n.done++
	if it.Status == entry.StatusFailed {
		n.failed++
	}
	if n.progress != nil {
		n.progress(n.done, n.failed, n.total)
	}

	sum, complete, err := agg.Add(it)
	if err != nil {
		return err
	}
	if complete {
		n.addSummary(report, sum)
	}

	if itemErr == nil {
		return nil
	}

	report.Failures = append(report.Failures, itemErr)
	logging.Warn().Err(itemErr).Str("class", it.Class).Str("file", it.Name).Msg("file failed")

	switch n.opts.OnError {
	case PolicySkip:
		if n.opts.MaxErrors > 0 && len(report.Failures) >= n.opts.MaxErrors {
			return fmt.Errorf("%w: %d files failed", ErrTooManyFailures, len(report.Failures))
		}
		return nil
	default:
		return itemErr
	}
}

func (n *Normalizer) addSummary(report *Report, sum entry.ClassSummary) {
	report.Classes = append(report.Classes, sum)
	if n.sink != nil {
		n.sink.Summary(sum)
	}
	metrics.ClassesProcessed.Inc()
	logging.Debug().
		Str("class", sum.Class).
		Int64("ok", sum.OK).
		Int64("skipped", sum.Skipped).
		Int64("failed", sum.Failed).
		Msg("class summary")
}

// fatal hands a run-level error to the sink before returning it.
func (n *Normalizer) fatal(err error) error {
	if n.sink != nil {
		path := ""
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			path = ioErr.Path
		}
		n.sink.Error(entry.RunError{Path: path, Message: err.Error()})
	}
	return err
}

func (n *Normalizer) setStage(stage string) {
	if n.stage != nil {
		n.stage(stage)
	}
}
