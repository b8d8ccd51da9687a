package cli

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// WaitNotifier prints retry wait notices so interactive sessions do
// not appear hung during long backoff delays. It implements the export
// pipeline's WaitReporter.
type WaitNotifier struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWaitNotifier creates a notifier writing to w. If w is nil, it
// defaults to os.Stderr.
func NewWaitNotifier(w io.Writer) *WaitNotifier {
	if w == nil {
		w = os.Stderr
	}
	return &WaitNotifier{writer: w}
}

// Waiting prints one wait notice.
func (n *WaitNotifier) Waiting(remaining time.Duration, attempt int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fmt.Fprintf(n.writer, "waiting %s before retry (attempt %d)...\n",
		remaining.Round(time.Second), attempt)
}
