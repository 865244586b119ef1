package rsmtpd

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"
)

// ErrRemoteClosed is returned by LineSocket operations when the peer has
// closed the transport, or any other I/O error makes the connection
// unusable.
var ErrRemoteClosed = errors.New("rsmtpd: remote closed the connection")

// ErrLineTooLong is returned by readLine when a line exceeds its limit
// without a terminating LF.
var ErrLineTooLong = errors.New("rsmtpd: line exceeds maximum length")

const defaultReadSize = 4096

// DefaultLineLimit is the default readLine limit, matching spec.md §4.1.
const DefaultLineLimit = 32768

// LineSocket is a buffered line-oriented wrapper over a network
// transport (spec.md §4.1). It is rebuilt, not reused, across a
// STARTTLS transport swap.
type LineSocket struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

// NewLineSocket wraps conn for buffered line I/O.
func NewLineSocket(conn net.Conn) *LineSocket {
	return &LineSocket{
		conn: conn,
		r:    bufio.NewReaderSize(conn, defaultReadSize),
		w:    bufio.NewWriterSize(conn, defaultReadSize),
	}
}

// newLineSocketFromReader wraps conn for buffered line I/O, reusing an
// already-populated bufio.Reader (e.g. one left over from consuming a
// HAProxy protocol preamble) instead of starting a fresh one.
func newLineSocketFromReader(conn net.Conn, r *bufio.Reader) *LineSocket {
	return &LineSocket{
		conn: conn,
		r:    r,
		w:    bufio.NewWriterSize(conn, defaultReadSize),
	}
}

// Conn returns the underlying transport, e.g. for a STARTTLS rewrap.
func (l *LineSocket) Conn() net.Conn {
	return l.conn
}

// Read returns up to readSize bytes, serving from the internal buffer
// first. It fails with ErrRemoteClosed on EOF or any transport error.
func (l *LineSocket) Read() ([]byte, error) {
	if _, err := l.r.Peek(1); err != nil {
		return nil, translateReadErr(err)
	}

	n := l.r.Buffered()
	if n > defaultReadSize {
		n = defaultReadSize
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(l.r, buf); err != nil {
		return nil, translateReadErr(err)
	}
	return buf, nil
}

// ReadLine returns the next line, including the trailing LF (CR is
// retained when present). A bare LF without a preceding CR is tolerated,
// matching bufio.Reader's natural line splitting (spec.md §4.1 and
// SPEC_FULL.md Open Question 2). Fails with ErrLineTooLong if limit is
// exceeded without seeing an LF, and ErrRemoteClosed on EOF mid-line.
func (l *LineSocket) ReadLine(limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultLineLimit
	}

	var line []byte
	for {
		chunk, err := l.r.ReadSlice('\n')
		line = append(line, chunk...)

		if err == nil {
			return line, nil
		}
		if err == bufio.ErrBufferFull {
			if len(line) >= limit {
				// Drain the rest of the oversized line so the connection
				// stays in sync with the peer, then report the error.
				if drainErr := l.discardLine(); drainErr != nil {
					return nil, drainErr
				}
				return nil, ErrLineTooLong
			}
			continue
		}
		return nil, translateReadErr(err)
	}
}

func (l *LineSocket) discardLine() error {
	for {
		_, err := l.r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return translateReadErr(err)
	}
}

// Write pushes bytes to the transport, flushing immediately. Any
// transport error surfaces as ErrRemoteClosed.
func (l *LineSocket) Write(b []byte) error {
	if _, err := l.w.Write(b); err != nil {
		return ErrRemoteClosed
	}
	if err := l.w.Flush(); err != nil {
		return ErrRemoteClosed
	}
	return nil
}

// WriteString is a convenience wrapper around Write.
func (l *LineSocket) WriteString(s string) error {
	return l.Write([]byte(s))
}

// BufferEmpty reports whether the internal buffer is empty AND no data
// is immediately readable from the transport within a short poll. It is
// used to detect RFC 5321 §4.3.1 pipelining violations when PIPELINING
// is not advertised (spec.md §4.1).
func (l *LineSocket) BufferEmpty() bool {
	if l.r.Buffered() > 0 {
		return false
	}

	type deadliner interface {
		SetReadDeadline(time.Time) error
	}
	dl, ok := l.conn.(deadliner)
	if !ok {
		return true
	}

	_ = dl.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	defer dl.SetReadDeadline(time.Time{})

	_, err := l.r.Peek(1)
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Any other error (EOF, reset) means there is effectively nothing
	// more to read on our side of this check; let the next real read
	// surface it as ErrRemoteClosed.
	return true
}

func translateReadErr(err error) error {
	if err == io.EOF {
		return ErrRemoteClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrRemoteClosed
	}
	return ErrRemoteClosed
}
