package dataset

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Label binds a class name to a training label.
type Label struct {
	Name  string `yaml:"name"`
	Label int    `yaml:"label"`
}

// LabelMap is the explicit class name to label mapping.
type LabelMap struct {
	Classes []Label `yaml:"classes"`
}

// BuildLabels assigns labels 0..n-1 to the class names in sorted order.
func BuildLabels(names []string) *LabelMap {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	m := &LabelMap{Classes: make([]Label, len(sorted))}
	for i, n := range sorted {
		m.Classes[i] = Label{Name: n, Label: i}
	}
	return m
}

// LoadLabels reads a YAML label map.
func LoadLabels(path string) (*LabelMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m LabelMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse label map %s: %w", path, err)
	}
	if err := m.check(); err != nil {
		return nil, fmt.Errorf("label map %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the label map as YAML.
func (m *LabelMap) Save(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal encodes the label map as YAML.
func (m *LabelMap) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

// Lookup returns the label for a class name.
func (m *LabelMap) Lookup(name string) (int, bool) {
	for _, l := range m.Classes {
		if l.Name == name {
			return l.Label, true
		}
	}
	return 0, false
}

// Names returns class names ordered by label.
func (m *LabelMap) Names() []string {
	sorted := append([]Label(nil), m.Classes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Label < sorted[j].Label })
	names := make([]string, len(sorted))
	for i, l := range sorted {
		names[i] = l.Name
	}
	return names
}

// Validate checks the map is well formed and covers every class name.
// Entries for classes that are not present are allowed.
func (m *LabelMap) Validate(names []string) error {
	if err := m.check(); err != nil {
		return err
	}
	for _, n := range names {
		if _, ok := m.Lookup(n); !ok {
			return fmt.Errorf("class %q has no label", n)
		}
	}
	return nil
}

func (m *LabelMap) check() error {
	seenName := make(map[string]bool, len(m.Classes))
	seenLabel := make(map[int]string, len(m.Classes))
	for _, l := range m.Classes {
		if err := ValidateName(l.Name); err != nil {
			return err
		}
		if l.Label < 0 {
			return fmt.Errorf("class %q has negative label %d", l.Name, l.Label)
		}
		if seenName[l.Name] {
			return fmt.Errorf("class %q listed twice", l.Name)
		}
		if other, ok := seenLabel[l.Label]; ok {
			return fmt.Errorf("label %d used by both %q and %q", l.Label, other, l.Name)
		}
		seenName[l.Name] = true
		seenLabel[l.Label] = l.Name
	}
	return nil
}
