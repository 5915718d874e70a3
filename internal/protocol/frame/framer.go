// Package frame turns an arbitrarily chunked byte stream into
// newline-terminated lines.
package frame

import "bytes"

const (
	Delimiter byte = '\n'

	// DefaultMaxLineBytes bounds the held partial line. Firmware messages
	// are a few hundred bytes; a line this long means the stream is noise.
	DefaultMaxLineBytes = 64 * 1024
)

// LineFramer accumulates chunks and yields complete lines. The zero value
// is ready to use and has no line length limit.
//
// A LineFramer is not safe for concurrent use; the session's single reader
// owns it.
type LineFramer struct {
	buf        []byte
	max        int
	discarding bool
	overflows  uint64
}

// NewLineFramer returns a framer that drops any line longer than maxLine
// bytes. maxLine <= 0 disables the limit.
func NewLineFramer(maxLine int) *LineFramer {
	return &LineFramer{max: maxLine}
}

// Feed appends chunk to the held buffer and returns every line completed by
// it, in stream order, without the delimiter. The trailing segment after the
// last delimiter (possibly empty) is kept for the next call.
func (f *LineFramer) Feed(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, Delimiter)
		if i < 0 {
			f.hold(chunk)
			break
		}
		seg := chunk[:i]
		chunk = chunk[i+1:]

		if f.discarding {
			f.discarding = false
			f.buf = f.buf[:0]
			continue
		}
		f.buf = append(f.buf, seg...)
		if f.tooLong() {
			f.overflows++
			f.buf = f.buf[:0]
			continue
		}
		lines = append(lines, string(f.buf))
		f.buf = f.buf[:0]
	}
	return lines
}

// Buffered returns the held partial line.
func (f *LineFramer) Buffered() string {
	return string(f.buf)
}

// Overflowed reports how many overlong lines were dropped.
func (f *LineFramer) Overflowed() uint64 {
	return f.overflows
}

// Reset drops any held partial line.
func (f *LineFramer) Reset() {
	f.buf = f.buf[:0]
	f.discarding = false
}

func (f *LineFramer) hold(chunk []byte) {
	if f.discarding {
		return
	}
	f.buf = append(f.buf, chunk...)
	if f.tooLong() {
		f.overflows++
		f.buf = f.buf[:0]
		f.discarding = true
	}
}

func (f *LineFramer) tooLong() bool {
	return f.max > 0 && len(f.buf) > f.max
}
