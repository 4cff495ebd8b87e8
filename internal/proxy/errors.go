package proxy

import (
	"errors"
	"fmt"
)

// ErrorKind classifies proxy errors by failure site.
type ErrorKind string

const (
	// KindMissingTarget fires when neither Target nor Forward resolves
	// to anything (a pipeline precondition).
	KindMissingTarget ErrorKind = "MissingTarget"
	// KindInvalidKind names a Before/After call with a pass-list kind
	// other than "web" or "ws". Before/After report that case by returning
	// ErrInvalidPassListKind, not an Error of this kind.
	KindInvalidKind ErrorKind = "InvalidKind"
	// KindNoSuchPass names a Before/After call whose anchor does not exist
	// in the target list. Before/After report that case by returning
	// ErrAnchorPassNotFound, not an Error of this kind.
	KindNoSuchPass ErrorKind = "NoSuchPass"
	// KindUpstreamConnect fires on DNS/TCP/TLS failure reaching the
	// upstream.
	KindUpstreamConnect ErrorKind = "UpstreamConnect"
	// KindUpstreamReset fires when the upstream peer resets mid-stream.
	KindUpstreamReset ErrorKind = "UpstreamReset"
	// KindForwardError fires for errors on the fire-and-forget forward
	// side-channel; it never affects the primary response.
	KindForwardError ErrorKind = "ForwardError"
	// KindClientGone fires when the client disconnects mid-proxy; this
	// kind is never surfaced as an event — it is a silent teardown.
	KindClientGone ErrorKind = "ClientGone"
)

// Error is the error value carried on an EventError event.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("proxy: %s", e.Kind)
	}
	return fmt.Sprintf("proxy: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a classification kind.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Pass-registry errors, returned synchronously by Before/After: plain
// returned errors for a setup-time misuse, rather than an event.
var (
	ErrInvalidPassListKind = errors.New("proxy: kind must be \"web\" or \"ws\"")
	ErrAnchorPassNotFound  = errors.New("proxy: no pass registered with that name")
	ErrDuplicatePassName   = errors.New("proxy: a pass with that name is already registered")
)

var errNotHijackable = errors.New("proxy: response writer does not support hijacking")

var errMissingTarget = errors.New("proxy: neither target nor forward is set")
