package sandbox

import (
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"go.starlark.net/starlark"
)

// TruncationMarker is appended once to a stream that exceeded its cap
const TruncationMarker = "\n... output truncated\n"

// Capture holds the stdout and stderr of exactly one run. Writes after
// Release are dropped, so an abandoned worker cannot change output the
// caller has already received.
type Capture struct {
	mu       sync.Mutex
	stdout   cappedBuffer
	stderr   cappedBuffer
	released bool
}

type cappedBuffer struct {
	buf       strings.Builder
	limit     int
	truncated bool
}

func (b *cappedBuffer) write(p string) {
	if b.truncated {
		return
	}
	if b.limit > 0 && b.buf.Len()+len(p) > b.limit {
		// Cut on a rune boundary so the kept output stays valid UTF-8.
		cut := b.limit - b.buf.Len()
		for cut > 0 && !utf8.RuneStart(p[cut]) {
			cut--
		}
		b.buf.WriteString(p[:cut])
		b.buf.WriteString(TruncationMarker)
		b.truncated = true
		return
	}
	b.buf.WriteString(p)
}

// NewCapture creates a capture whose streams hold at most limit bytes each
// (plus the truncation marker). A non-positive limit means unbounded.
func NewCapture(limit int) *Capture {
	return &Capture{
		stdout: cappedBuffer{limit: limit},
		stderr: cappedBuffer{limit: limit},
	}
}

// Stdout returns the standard output sink
func (c *Capture) Stdout() io.Writer {
	return sink{c: c, buf: &c.stdout}
}

// Stderr returns the standard error sink
func (c *Capture) Stderr() io.Writer {
	return sink{c: c, buf: &c.stderr}
}

// Print is the starlark.Thread print hook. Each call writes one line.
func (c *Capture) Print(_ *starlark.Thread, msg string) {
	c.write(&c.stdout, msg+"\n")
}

// Snapshot returns everything captured so far
func (c *Capture) Snapshot() (stdout, stderr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout.buf.String(), c.stderr.buf.String()
}

// Release stops accepting writes and returns the final output. It is safe
// to call more than once.
func (c *Capture) Release() (stdout, stderr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	return c.stdout.buf.String(), c.stderr.buf.String()
}

func (c *Capture) write(b *cappedBuffer, p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return
	}
	b.write(p)
}

type sink struct {
	c   *Capture
	buf *cappedBuffer
}

func (s sink) Write(p []byte) (int, error) {
	s.c.write(s.buf, string(p))
	return len(p), nil
}
