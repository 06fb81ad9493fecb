package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/reqsim/internal/metrics"
)

// syncBuffer guards a bytes.Buffer written by the reporter goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterBasic(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()

	reporter := NewProgressReporter(collector, 5, nil, 100*time.Millisecond, nil)
	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}

	// Stopping a reporter that never started must not block.
	reporter.Stop()
}

func TestProgressReporterFormatting(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	for i := 0; i < 3; i++ {
		collector.RecordTask(100*time.Millisecond, nil)
	}

	var buf syncBuffer
	reporter := NewProgressReporter(collector, 10, func() int32 { return 3 }, 20*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start() // second start is a no-op

	time.Sleep(60 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	output := buf.String()
	if !strings.Contains(output, "Tasks: 3/10") {
		t.Errorf("Expected 'Tasks: 3/10' in progress output, got %q", output)
	}
	if !strings.Contains(output, "Counter: 3") {
		t.Errorf("Expected counter in progress output, got %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("final progress line should end with a newline, got %q", output)
	}
}
