package main

import (
	"errors"
	"fmt"
	"strings"
)

// The isa-debug-exit device terminates the emulator with (code << 1) | 1.
const (
	statusPassed = 0x10<<1 | 1
	statusFailed = 0x11<<1 | 1
)

var errUnexpectedStatus = errors.New("emulator exited without writing to the debug-exit port")

// classifyExit maps the emulator exit status to the self-test outcome.
func classifyExit(status int) (bool, error) {
	switch status {
	case statusPassed:
		return true, nil
	case statusFailed:
		return false, nil
	default:
		return false, fmt.Errorf("%w (status %d)", errUnexpectedStatus, status)
	}
}

// ptyPath extracts the pseudo terminal path from the line the emulator prints
// when started with "-serial pty".
func ptyPath(line string) (string, bool) {
	const marker = "char device redirected to "
	idx := strings.Index(line, marker)
	if idx == -1 {
		return "", false
	}

	rest := line[idx+len(marker):]
	if end := strings.IndexByte(rest, ' '); end != -1 {
		rest = rest[:end]
	}
	if !strings.HasPrefix(rest, "/dev/") {
		return "", false
	}
	return rest, true
}

// report accumulates the self-test results streamed over the serial port.
type report struct {
	expected int
	passed   []string
	failed   []string
	errors   []string

	// pending holds the name of a test whose result has not been seen yet.
	pending string
}

// observe processes a single line of serial output. Lines that are not part
// of the test protocol are ignored.
func (r *report) observe(line string) {
	line = strings.TrimRight(line, "\r\n")

	var count int
	if _, err := fmt.Sscanf(line, "running %d test(s)", &count); err == nil {
		r.expected = count
		return
	}

	if strings.HasPrefix(line, "error: ") {
		r.errors = append(r.errors, strings.TrimPrefix(line, "error: "))
		return
	}

	if r.pending != "" && strings.HasSuffix(line, "[ok]") {
		r.passed = append(r.passed, r.pending)
		r.pending = ""
		return
	}
	if r.pending != "" && strings.HasSuffix(line, "[failed]") {
		r.failed = append(r.failed, r.pending)
		r.pending = ""
		return
	}

	name, result, found := strings.Cut(line, "...\t")
	if !found {
		return
	}

	switch result {
	case "[ok]":
		r.passed = append(r.passed, name)
	case "[failed]":
		r.failed = append(r.failed, name)
	default:
		// The test itself printed output before its result.
		r.pending = name
	}
}

// complete reports whether every announced test produced a result.
func (r *report) complete() bool {
	return r.expected > 0 && len(r.passed)+len(r.failed) == r.expected
}

func (r *report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d passed", len(r.passed), r.expected)
	for _, name := range r.failed {
		fmt.Fprintf(&b, "\nFAIL %s", name)
	}
	for _, msg := range r.errors {
		fmt.Fprintf(&b, "\n  %s", msg)
	}
	return b.String()
}
