package dataset

import (
	"fmt"
	"math/rand"
	"path/filepath"
)

// Sample is one labelled image of a normalized dataset.
type Sample struct {
	Path  string
	Class string
	Label int
}

// Load walks a normalized dataset and returns its samples together with
// the class names ordered by label. A nil labels map is built from the
// folders found.
func Load(root string, labels *LabelMap) ([]Sample, []string, error) {
	classes, err := Discover(root, nil)
	if err != nil {
		return nil, nil, err
	}
	names := Names(classes)
	if labels == nil {
		labels = BuildLabels(names)
	}
	if err := labels.Validate(names); err != nil {
		return nil, nil, fmt.Errorf("validate labels: %w", err)
	}

	var samples []Sample
	for _, c := range classes {
		label, _ := labels.Lookup(c.Name)
		for _, f := range c.Files {
			samples = append(samples, Sample{
				Path:  filepath.Join(c.Dir, f),
				Class: c.Name,
				Label: label,
			})
		}
	}
	return samples, labels.Names(), nil
}

// Split shuffles a copy of samples with rng and cuts it into a train and a
// test set, the test set holding testFraction of the samples rounded down.
// The input slice is not modified.
func Split(samples []Sample, testFraction float64, rng *rand.Rand) (train, test []Sample, err error) {
	if testFraction < 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v out of range [0, 1)", testFraction)
	}
	shuffled := append([]Sample(nil), samples...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	n := int(float64(len(shuffled)) * testFraction)
	return shuffled[n:], shuffled[:n], nil
}
