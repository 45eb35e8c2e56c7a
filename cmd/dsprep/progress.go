package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// onInterrupt calls cancel on the first SIGINT/SIGTERM and exits on the
// second. The returned func stops listening.
func onInterrupt(cancel func()) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Fprintln(os.Stderr, "\nCanceling... (press Ctrl+C again to force)")
		cancel()
		if _, ok := <-sigCh; ok {
			os.Exit(130)
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(sigCh)
	}
}

// progress renders a spinner line on a TTY, or periodic PROGRESS lines
// otherwise, from counters updated by the run.
type progress struct {
	label    string
	interval time.Duration
	start    time.Time
	isTTY    bool

	done   atomic.Int64
	failed atomic.Int64
	total  atomic.Int64
	stage  atomic.Value

	stop   chan struct{}
	exited chan struct{}
}

func newProgress(label string, interval time.Duration) *progress {
	p := &progress{
		label:    label,
		interval: interval,
		start:    time.Now(),
		isTTY:    isTerminal(),
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	p.stage.Store("")
	return p
}

func (p *progress) update(done, failed, total int64) {
	p.done.Store(done)
	p.failed.Store(failed)
	p.total.Store(total)
}

func (p *progress) setStage(s string) {
	if s != "" {
		p.stage.Store(s)
	}
}

func (p *progress) run() {
	go func() {
		defer close(p.exited)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		lastLine := time.Now()
		spinnerIdx := 0
		for {
			select {
			case <-p.stop:
				if p.isTTY {
					fmt.Fprintf(os.Stderr, "\r\033[K")
				}
				return
			case <-ticker.C:
				if p.isTTY {
					spinner := spinnerFrames[spinnerIdx%len(spinnerFrames)]
					spinnerIdx++
					fmt.Fprintf(os.Stderr, "\r\033[K%s %s", spinner, p.line())
				} else if p.interval > 0 && time.Since(lastLine) >= p.interval {
					fmt.Fprintf(os.Stderr, "PROGRESS %s\n", p.line())
					lastLine = time.Now()
				}
			}
		}
	}()
}

func (p *progress) line() string {
	elapsed := time.Since(p.start).Round(time.Millisecond)
	stage, _ := p.stage.Load().(string)
	if stage != "" && stage != p.label {
		return fmt.Sprintf("%s... | %s", stage, elapsed)
	}

	done := p.done.Load()
	rate := float64(0)
	if elapsed.Seconds() > 0 {
		rate = float64(done) / elapsed.Seconds()
	}
	line := fmt.Sprintf("%s... %s/%s | %.0f/sec | %s",
		p.label, humanize.Comma(done), humanize.Comma(p.total.Load()), rate, elapsed)
	if failed := p.failed.Load(); failed > 0 {
		line += fmt.Sprintf(" | %d failed", failed)
	}
	return line
}

func (p *progress) finish() {
	close(p.stop)
	<-p.exited
}
