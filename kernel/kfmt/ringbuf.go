package kfmt

import "io"

// ringBufferSize is large enough to hold a full 80x25 screen of early boot
// output. It must be a power of 2.
const ringBufferSize = 2048

// ringBuffer captures Printf output until an output sink is registered. Once
// full, new writes overwrite the oldest bytes.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int
}

// Write appends p to the buffer, discarding the oldest bytes on overflow.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
		}
	}

	return len(p), nil
}

// Len returns the number of buffered bytes.
func (rb *ringBuffer) Len() int {
	return (rb.wIndex - rb.rIndex) & (ringBufferSize - 1)
}

// pending returns the buffered bytes as at most two contiguous chunks.
func (rb *ringBuffer) pending() (head, tail []byte) {
	if rb.rIndex <= rb.wIndex {
		return rb.buffer[rb.rIndex:rb.wIndex], nil
	}
	return rb.buffer[rb.rIndex:], rb.buffer[:rb.wIndex]
}

// Read consumes up to len(p) buffered bytes. It returns io.EOF once the
// buffer is empty.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	head, _ := rb.pending()
	if len(head) == 0 {
		return 0, io.EOF
	}

	n := copy(p, head)
	rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
	return n, nil
}

// WriteTo drains the buffer into w. Implementing io.WriterTo keeps io.Copy
// from allocating an intermediate buffer.
func (rb *ringBuffer) WriteTo(w io.Writer) (int64, error) {
	var written int64

	head, tail := rb.pending()
	for _, chunk := range [2][]byte{head, tail} {
		if len(chunk) == 0 {
			continue
		}

		n, err := w.Write(chunk)
		written += int64(n)
		rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
		if err != nil {
			return written, err
		}
	}

	return written, nil
}
