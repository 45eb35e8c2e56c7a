package entry

import (
	"fmt"
	"time"
)

// Status is the outcome of normalizing one source file.
type Status uint8

const (
	StatusOK      Status = 0
	StatusSkipped Status = 1
	StatusFailed  Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "ok":
		return StatusOK, nil
	case "skipped":
		return StatusSkipped, nil
	case "failed":
		return StatusFailed, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// Item records one source image and what became of it.
type Item struct {
	Class    string
	Name     string // Source file name
	Output   string // Output file name, empty unless written
	Status   Status
	Reason   string
	Format   string
	SrcW     int
	SrcH     int
	Alpha    bool
	Bytes    int64 // Size of the written output
	Duration time.Duration
}

// Class describes a class folder known to the run.
type Class struct {
	ID        int64
	Name      string
	Label     int
	SourceDir string
	OutputDir string
	Expected  int // Entries found in the source folder
}

// ClassSummary aggregates item results for one class.
type ClassSummary struct {
	Class   string
	Label   int
	Total   int64
	OK      int64
	Skipped int64
	Failed  int64
	Bytes   int64
}

// Add folds an item into the summary.
func (s *ClassSummary) Add(it Item) {
	s.Total++
	switch it.Status {
	case StatusOK:
		s.OK++
		s.Bytes += it.Bytes
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
}

// RunError is a failure that is not tied to a single item.
type RunError struct {
	Path    string
	Message string
}

// RunMeta holds metadata about a normalization run.
type RunMeta struct {
	InputDir   string
	OutputDir  string
	Width      int
	Height     int
	Prefix     string
	OnError    string
	StartTime  time.Time
	EndTime    time.Time
	ClassCount int64
	ItemCount  int64
	OKCount    int64
	ErrorCount int64
	TotalBytes int64
}
