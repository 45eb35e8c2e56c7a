package rollup

import (
	"fmt"
	"sort"

	"github.com/michaelscutari/dsprep/internal/entry"
)

// Aggregator folds item results into per-class summaries while a run is
// in progress. A summary is released as soon as the class has seen as many
// items as it expects. Items must follow their class announcement.
type Aggregator struct {
	partial   map[string]*entry.ClassSummary
	expected  map[string]int64
	completed int
}

// NewAggregator creates a streaming class aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		partial:  make(map[string]*entry.ClassSummary),
		expected: make(map[string]int64),
	}
}

// Expect announces a class and how many items it will produce. It returns
// the finished summary right away when nothing more is expected.
func (a *Aggregator) Expect(c entry.Class) (entry.ClassSummary, bool, error) {
	if _, ok := a.partial[c.Name]; ok {
		return entry.ClassSummary{}, false, fmt.Errorf("class %q announced twice", c.Name)
	}
	a.partial[c.Name] = &entry.ClassSummary{Class: c.Name, Label: c.Label}
	a.expected[c.Name] = int64(c.Expected)
	return a.complete(c.Name)
}

// Add folds one item into its class. The returned summary is valid when
// the boolean is true, meaning the class just reached its expected count.
func (a *Aggregator) Add(it entry.Item) (entry.ClassSummary, bool, error) {
	sum, ok := a.partial[it.Class]
	if !ok {
		return entry.ClassSummary{}, false, fmt.Errorf("item %q for class %q that is not in progress", it.Name, it.Class)
	}
	sum.Add(it)
	return a.complete(it.Class)
}

func (a *Aggregator) complete(class string) (entry.ClassSummary, bool, error) {
	sum := a.partial[class]
	if sum.Total < a.expected[class] {
		return entry.ClassSummary{}, false, nil
	}
	delete(a.partial, class)
	delete(a.expected, class)
	a.completed++
	return *sum, true, nil
}

// Completed returns how many classes have been released.
func (a *Aggregator) Completed() int {
	return a.completed
}

// Flush releases every class still in progress, sorted by name. Runs that
// stop early use it to record what was done before the stop.
func (a *Aggregator) Flush() []entry.ClassSummary {
	names := make([]string, 0, len(a.partial))
	for name := range a.partial {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]entry.ClassSummary, 0, len(names))
	for _, name := range names {
		out = append(out, *a.partial[name])
	}
	a.partial = make(map[string]*entry.ClassSummary)
	a.expected = make(map[string]int64)
	return out
}
