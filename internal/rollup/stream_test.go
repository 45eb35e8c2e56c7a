package rollup

import (
	"testing"

	"github.com/michaelscutari/dsprep/internal/entry"
)

func TestAggregatorReleasesCompletedClass(t *testing.T) {
	agg := NewAggregator()

	if _, done, err := agg.Expect(entry.Class{Name: "catA", Label: 0, Expected: 2}); err != nil || done {
		t.Fatalf("expect catA: done=%v err=%v", done, err)
	}

	if _, done, err := agg.Add(entry.Item{Class: "catA", Name: "img1.jpg", Status: entry.StatusOK, Bytes: 100}); err != nil || done {
		t.Fatalf("first item: done=%v err=%v", done, err)
	}

	sum, done, err := agg.Add(entry.Item{Class: "catA", Name: "img2.png", Status: entry.StatusFailed})
	if err != nil {
		t.Fatalf("second item: %v", err)
	}
	if !done {
		t.Fatalf("expected catA to complete")
	}
	if sum.Total != 2 || sum.OK != 1 || sum.Failed != 1 || sum.Bytes != 100 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if agg.Completed() != 1 {
		t.Fatalf("expected 1 completed class, got %d", agg.Completed())
	}
}

func TestAggregatorEmptyClassCompletesOnExpect(t *testing.T) {
	agg := NewAggregator()
	sum, done, err := agg.Expect(entry.Class{Name: "empty", Label: 3})
	if err != nil {
		t.Fatalf("expect: %v", err)
	}
	if !done || sum.Class != "empty" || sum.Label != 3 || sum.Total != 0 {
		t.Fatalf("unexpected result: done=%v %+v", done, sum)
	}
}

func TestAggregatorRejectsUnannouncedClass(t *testing.T) {
	agg := NewAggregator()
	if _, done, err := agg.Add(entry.Item{Class: "catB", Name: "x.jpg", Status: entry.StatusSkipped}); err == nil || done {
		t.Fatalf("expected error for unannounced class: done=%v err=%v", done, err)
	}

	sum, done, err := agg.Expect(entry.Class{Name: "catB", Label: 1, Expected: 1})
	if err != nil {
		t.Fatalf("expect: %v", err)
	}
	if done || sum.Total != 0 {
		t.Fatalf("rejected item must not count: done=%v %+v", done, sum)
	}
}

func TestAggregatorFlushPartial(t *testing.T) {
	agg := NewAggregator()
	agg.Expect(entry.Class{Name: "b", Expected: 3})
	agg.Expect(entry.Class{Name: "a", Expected: 2})
	agg.Add(entry.Item{Class: "b", Status: entry.StatusOK, Bytes: 7})

	pending := agg.Flush()
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending classes, got %d", len(pending))
	}
	if pending[0].Class != "a" || pending[1].Class != "b" {
		t.Fatalf("pending not sorted: %+v", pending)
	}
	if pending[1].OK != 1 || pending[1].Bytes != 7 {
		t.Fatalf("unexpected partial summary: %+v", pending[1])
	}
	if len(agg.Flush()) != 0 {
		t.Fatalf("flush should reset state")
	}
}

func TestAggregatorLateItemsAndDuplicates(t *testing.T) {
	agg := NewAggregator()
	agg.Expect(entry.Class{Name: "a", Expected: 1})
	if _, _, err := agg.Add(entry.Item{Class: "a"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	// Class released; a further item is an error.
	if _, done, err := agg.Add(entry.Item{Class: "a"}); err == nil || done {
		t.Fatalf("late item: done=%v err=%v", done, err)
	}

	if _, _, err := agg.Expect(entry.Class{Name: "c", Expected: 1}); err != nil {
		t.Fatalf("expect c: %v", err)
	}
	if _, _, err := agg.Expect(entry.Class{Name: "c", Expected: 1}); err == nil {
		t.Fatalf("expected duplicate announcement error")
	}
}
