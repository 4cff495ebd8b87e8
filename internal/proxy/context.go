package proxy

import (
	"net/http"

	"github.com/google/uuid"
)

// ErrorCallback is invoked by a pass when it hits a terminal error,
// letting the caller classify and emit it without every pass needing a
// direct EventSink reference for error reporting.
type ErrorCallback func(kind ErrorKind, err error)

// Context bundles everything a single pipeline invocation threads through
// its pass list: the inbound request, the writer half (HTTP response or
// hijacked stream), the effective merged options, any already-buffered
// upgrade bytes, and the observability handles. Passes share this one
// value instead of a positional (req, res, options) argument list.
type Context struct {
	Req     *http.Request
	Writer  Writer
	Options *Options

	// Head holds bytes already read off the socket before the pass chain
	// took over (e.g. by net/http parsing the upgrade request line), so
	// the stream pass can push them back before splicing.
	Head []byte

	Sink    EventSink
	OnError ErrorCallback

	// RequestID identifies this invocation; the access-log sink records it
	// on each row. Log lines and trace spans do not carry it.
	RequestID string
}

// NewContext builds a Context with a fresh request ID.
func NewContext(req *http.Request, w Writer, opts *Options, sink EventSink, onError ErrorCallback) *Context {
	return &Context{
		Req:       req,
		Writer:    w,
		Options:   opts,
		Sink:      sink,
		OnError:   onError,
		RequestID: uuid.NewString(),
	}
}

// emit is a small convenience wrapper used by passes that hold a Context
// rather than a bare EventSink.
func (c *Context) emit(kind EventKind) {
	if c.Sink != nil {
		c.Sink.Emit(Event{Kind: kind, Req: c})
	}
}

func (c *Context) emitError(kind ErrorKind, err error) {
	wrapped := NewError(kind, err)
	if c.OnError != nil {
		c.OnError(kind, err)
	}
	if c.Sink != nil {
		c.Sink.Emit(Event{Kind: EventError, Req: c, Err: wrapped})
	}
}
