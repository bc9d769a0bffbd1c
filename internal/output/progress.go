package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/casebench/internal/runner"
)

// Snapshotter exposes the controller's current progress.
type Snapshotter interface {
	Snapshot() runner.Progress
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	source   Snapshotter
	ticker   *time.Ticker
	done     chan struct{}
	finished chan struct{}
	writer   io.Writer
	active   int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(source Snapshotter, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		source:   source,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		writer:   writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and ends the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, "\r"+FormatProgress(p.source.Snapshot()))
		case <-p.done:
			return
		}
	}
}

// FormatProgress renders a one-line view of the controller's progress.
func FormatProgress(pr runner.Progress) string {
	if pr.Case.ID == 0 {
		return fmt.Sprintf("[%s] cases %d/%d", pr.State, pr.Cursor.Started, pr.TotalCases)
	}
	return fmt.Sprintf("[%s] %s %d/%d | In-flight: %d | Issued: %d | tmo/err/suc %d/%d/%d | %s",
		pr.State, pr.Case.Suite, pr.Case.ID, pr.TotalCases, pr.InFlight, pr.Issued,
		pr.Counts.Timeouts, pr.Counts.Errors, pr.Counts.Successes, pr.Elapsed.Truncate(time.Second))
}
