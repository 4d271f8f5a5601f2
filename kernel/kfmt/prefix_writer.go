package kfmt

import "io"

// maxPrefixLen is the longest prefix a PrefixWriter can store.
const maxPrefixLen = 64

// PrefixWriter is an io.Writer that forwards writes to Sink and injects a
// prefix at the beginning of each line. The prefix is stored inside the
// writer so it can be built with SetPrefix without allocating.
type PrefixWriter struct {
	// Sink receives all prefixed output.
	Sink io.Writer

	prefix    [maxPrefixLen]byte
	prefixLen int

	// midLine is set when the last write did not end with a line feed.
	midLine bool
}

// SetPrefix formats the prefix according to format and resets the writer to
// the start of a line. Prefixes longer than maxPrefixLen are truncated.
func (w *PrefixWriter) SetPrefix(format string, args ...interface{}) {
	w.prefixLen = 0
	w.midLine = false
	Fprintf(prefixBuilder{w}, format, args...)
}

// Prefix returns the active prefix.
func (w *PrefixWriter) Prefix() []byte {
	return w.prefix[:w.prefixLen]
}

// Write sends p to the sink, emitting the prefix before the first byte of
// every line. The returned byte count excludes injected prefixes.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written, lineStart int

	for index, b := range p {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix()); err != nil {
				return written, err
			}
			w.midLine = true
		}

		if b != '\n' {
			continue
		}

		n, err := w.Sink.Write(p[lineStart : index+1])
		written += n
		if err != nil {
			return written, err
		}
		lineStart = index + 1
		w.midLine = false
	}

	if lineStart < len(p) {
		n, err := w.Sink.Write(p[lineStart:])
		written += n
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// prefixBuilder appends formatted output to a PrefixWriter's prefix.
type prefixBuilder struct {
	w *PrefixWriter
}

func (b prefixBuilder) Write(p []byte) (int, error) {
	n := copy(b.w.prefix[b.w.prefixLen:], p)
	b.w.prefixLen += n
	return len(p), nil
}
