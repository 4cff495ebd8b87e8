package proxy

import "net/http"

// WriterKind tags which concrete form a Writer holds.
type WriterKind int

const (
	// WriterHTTP wraps a standard HTTP response writer (the "web" pipeline).
	WriterHTTP WriterKind = iota
	// WriterStream wraps a hijacked, post-handshake bidirectional socket
	// (the "ws" pipeline).
	WriterStream
)

// Writer is the polymorphic client-facing sink that flows through a
// pipeline invocation: a tagged union of an HTTP response writer and a
// raw hijacked stream. Exactly one of HTTP or Stream is set, matching
// Kind.
type Writer struct {
	Kind   WriterKind
	HTTP   http.ResponseWriter
	Stream *HijackedConn
}

// NewHTTPWriter wraps a response writer for the web pipeline.
func NewHTTPWriter(w http.ResponseWriter) Writer {
	return Writer{Kind: WriterHTTP, HTTP: w}
}

// NewStreamWriter wraps a hijacked connection for the ws pipeline.
func NewStreamWriter(c *HijackedConn) Writer {
	return Writer{Kind: WriterStream, Stream: c}
}

// IsHTTP reports whether this writer is the web (response) form.
func (w Writer) IsHTTP() bool { return w.Kind == WriterHTTP }

// IsStream reports whether this writer is the ws (raw socket) form.
func (w Writer) IsStream() bool { return w.Kind == WriterStream }

// Destroy tears down the writer on a terminal error path: every accepted
// request ends with the writer completed or destroyed, never neither,
// never both. For the HTTP form this hijacks (if possible) and closes
// the raw connection so no partial response lingers half-written; for
// the stream form it simply closes the socket.
func (w Writer) Destroy() {
	switch w.Kind {
	case WriterHTTP:
		if hj, ok := w.HTTP.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
			}
		}
	case WriterStream:
		if w.Stream != nil {
			_ = w.Stream.Close()
		}
	}
}
