package snapshot

import "github.com/michaelscutari/dsprep/internal/entry"

// chanSink forwards normalizer results to the recorder's channels. Sends
// block, so the recorder sees every result.
type chanSink struct {
	classes   chan entry.Class
	items     chan entry.Item
	summaries chan entry.ClassSummary
	errors    chan entry.RunError
}

func newChanSink() *chanSink {
	return &chanSink{
		classes:   make(chan entry.Class, 64),
		items:     make(chan entry.Item, 4096),
		summaries: make(chan entry.ClassSummary, 64),
		errors:    make(chan entry.RunError, 64),
	}
}

func (s *chanSink) Class(c entry.Class)            { s.classes <- c }
func (s *chanSink) Item(it entry.Item)             { s.items <- it }
func (s *chanSink) Summary(sum entry.ClassSummary) { s.summaries <- sum }
func (s *chanSink) Error(e entry.RunError)         { s.errors <- e }

func (s *chanSink) close() {
	close(s.classes)
	close(s.items)
	close(s.summaries)
	close(s.errors)
}

// drain discards results until the sink is closed, so a failed recorder
// does not block the normalizer.
func (s *chanSink) drain() {
	classes, items, summaries, errors := s.classes, s.items, s.summaries, s.errors
	for classes != nil || items != nil || summaries != nil || errors != nil {
		select {
		case _, ok := <-classes:
			if !ok {
				classes = nil
			}
		case _, ok := <-items:
			if !ok {
				items = nil
			}
		case _, ok := <-summaries:
			if !ok {
				summaries = nil
			}
		case _, ok := <-errors:
			if !ok {
				errors = nil
			}
		}
	}
}
