package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/reqsim/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	total     int
	counter   func() int32
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given
// interval. total is the number of dispatched tasks; counter, when non-nil,
// reads the shared counter for display.
func NewProgressReporter(collector *metrics.Collector, total int, counter func() int32, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &ProgressReporter{
		collector: collector,
		total:     total,
		counter:   counter,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and prints a final line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
		fmt.Fprintln(p.writer, p.line())
		return
	}
	p.ticker.Stop()
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line())
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	stats := p.collector.Stats(time.Since(p.start))
	line := fmt.Sprintf("\rTasks: %d/%d | Failures: %d | Tasks/s: %.1f",
		stats.Total, p.total, stats.Failures, stats.TasksPerSec)
	if p.counter != nil {
		line += fmt.Sprintf(" | Counter: %d", p.counter())
	}
	return line
}
