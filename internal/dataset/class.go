// Package dataset models an image classification dataset laid out as one
// folder per class. The folder name is the class name; labels are assigned
// through an explicit LabelMap instead of being implied by listing order.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Class is a class folder and the files it holds.
type Class struct {
	Name    string
	Dir     string
	Files   []string  // Regular files and links to them, sorted
	Ignored []Ignored // Everything else in the folder, sorted
}

// Ignored is a class folder entry that cannot hold an image.
type Ignored struct {
	Name   string
	Reason string
}

// ValidateName rejects folder names that cannot be used as a class name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("empty class name")
	case name == "." || name == "..":
		return fmt.Errorf("invalid class name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("class name %q contains a path separator", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("class name %q contains a control character", name)
		}
	}
	return nil
}

// Discover lists the class folders directly under root, sorted by name.
// Symbolic links to directories count as class folders. Plain files at the
// top level are not classes. Folders for which skip returns true are left
// out; skip may be nil.
func Discover(root string, skip func(name string) bool) ([]Class, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var classes []Class
	for _, de := range entries {
		if skip != nil && skip(de.Name()) {
			continue
		}
		dir := filepath.Join(root, de.Name())
		mode, err := resolveMode(dir, de)
		if err != nil || !mode.IsDir() {
			continue
		}
		if err := ValidateName(de.Name()); err != nil {
			return nil, err
		}
		files, ignored, err := ListFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("list class %q: %w", de.Name(), err)
		}
		classes = append(classes, Class{Name: de.Name(), Dir: dir, Files: files, Ignored: ignored})
	}
	return classes, nil
}

// ListFiles splits the entries of dir into files, following symbolic
// links, and the entries that are not files, with the reason why.
func ListFiles(dir string) ([]string, []Ignored, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	files := make([]string, 0, len(entries))
	var ignored []Ignored
	for _, de := range entries {
		mode, err := resolveMode(filepath.Join(dir, de.Name()), de)
		switch {
		case err != nil:
			ignored = append(ignored, Ignored{Name: de.Name(), Reason: fmt.Sprintf("broken link: %v", err)})
		case mode.IsRegular():
			files = append(files, de.Name())
		case mode.IsDir():
			ignored = append(ignored, Ignored{Name: de.Name(), Reason: "directory"})
		default:
			ignored = append(ignored, Ignored{Name: de.Name(), Reason: "not a regular file"})
		}
	}
	sort.Strings(files)
	sort.Slice(ignored, func(i, j int) bool { return ignored[i].Name < ignored[j].Name })
	return files, ignored, nil
}

// resolveMode returns the entry's type, following a symbolic link.
func resolveMode(path string, de os.DirEntry) (os.FileMode, error) {
	if de.Type()&os.ModeSymlink == 0 {
		return de.Type(), nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Mode(), nil
}

// Names returns the class names in order.
func Names(classes []Class) []string {
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name
	}
	return names
}
