package service

import (
	"bytes"
	"strings"
	"sync"
)

// OutputCapture captures run output. It collects last N log lines in a circular
// buffer and optionally holds the run error. Thread safe for concurrent writes.
type OutputCapture struct {
	maxLogLines int
	log         []string
	err         error
	mu          sync.Mutex
}

// NewOutputCapture creates io.Writer that captures output limited to last max lines
func NewOutputCapture(maximum int) *OutputCapture {
	return &OutputCapture{maxLogLines: maximum}
}

// Write satisfies io.Writer interface, captures last N log lines in circular buffer
func (o *OutputCapture) Write(p []byte) (n int, err error) {
	if o.maxLogLines == 0 {
		return len(p), nil // disabled, don't capture anything
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for line := range bytes.SplitSeq(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if len(o.log) >= o.maxLogLines {
			o.log = o.log[1:]
		}
		o.log = append(o.log, string(line))
	}
	return len(p), err
}

// GetOutput returns the captured log output as a single string
func (o *OutputCapture) GetOutput() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return strings.Join(o.log, "\n")
}

// SerError assigns run error to combine with the captured output
func (o *OutputCapture) SerError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Error returns string combining the error and captured log
func (o *OutputCapture) Error() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := strings.Join(o.log, "\n")
	if o.err == nil {
		return out
	}
	if out == "" {
		return o.err.Error()
	}
	return o.err.Error() + "\n\n" + out
}
