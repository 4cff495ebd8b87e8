package proxy

import (
	"crypto/tls"
	"net/http"
	"time"
)

// Options is the configuration record passed per-server or per-call.
// Zero values mean "not set" for every field except the explicit *bool
// fields, which distinguish "not set" (nil, use the documented default)
// from an explicit false.
type Options struct {
	// Target is the upstream URL. Required unless Forward is set.
	Target TargetSpec
	// Forward is a side-channel URL; the request is fired but its
	// response is discarded.
	Forward TargetSpec

	// SSL holds TLS server material for the listener. Owned by the
	// external factory. MergeOptions carries it through, but no pass reads
	// it: the ws stream pass dials TLS upstreams with the client
	// configuration BuildOutgoingRequest puts on its transport.
	SSL *tls.Config

	// WS enables upgrade handling on the listener.
	WS bool

	// XFwd adds x-forwarded-{for,port,proto} headers.
	XFwd bool

	// Secure verifies the upstream TLS certificate. Default true.
	Secure *bool

	// ToProxy treats the inbound request's URL as already-absolute.
	ToProxy bool

	// PrependPath prepends the target's path to the inbound path.
	// Default true.
	PrependPath *bool

	// IgnorePath drops the inbound path entirely.
	IgnorePath bool

	// ChangeOrigin rewrites the outbound Host to the target host.
	ChangeOrigin bool

	// Auth is a literal "user:pass" emitted as the Authorization header.
	Auth string

	// Headers are merged over the inbound headers (overlay wins).
	Headers http.Header

	// LocalAddress binds the outbound socket's local address.
	LocalAddress string

	// HTTPAgent / HTTPSAgent are connection-pool handles. nil means "no
	// pooling": a fresh transport per call, forcing Connection: close
	// unless the existing Connection header mentions "upgrade".
	HTTPAgent  *http.Transport
	HTTPSAgent *http.Transport

	// Timeout is the inbound socket's idle-timeout; ProxyTimeout is the
	// outbound request's timeout.
	Timeout      time.Duration
	ProxyTimeout time.Duration

	// HostRewrite, AutoRewrite, ProtocolRewrite control Location
	// rewriting for redirect responses.
	HostRewrite     string
	AutoRewrite     bool
	ProtocolRewrite string

	// CookieDomainRewrite / CookiePathRewrite map an original Set-Cookie
	// attribute value to its replacement. The key "*" is the fallback;
	// an empty replacement value removes the attribute.
	CookieDomainRewrite map[string]string
	CookiePathRewrite   map[string]string

	// SelfHandleResponse, when true, skips the automatic status/header/body
	// copy in the web stream pass so a proxyRes hook can take over.
	SelfHandleResponse bool

	// Method overrides the outbound request method; empty means "use the
	// inbound method".
	Method string

	// RequestOptions are extra headers merged into the WS upgrade request
	// sent upstream.
	RequestOptions http.Header

	// When holds a CEL boolean expression. MergeOptions carries it
	// through, but the executor does not compile or evaluate it; passes
	// are gated only by Pass.Guard (see internal/proxy/predicate.go).
	When string

	// HandleErrors registers the default 502 error responder when true.
	HandleErrors bool
}

// secureDefault returns options.Secure, defaulting to true.
func (o *Options) secureDefault() bool {
	if o == nil || o.Secure == nil {
		return true
	}
	return *o.Secure
}

// prependPathDefault returns options.PrependPath, defaulting to true.
func (o *Options) prependPathDefault() bool {
	if o == nil || o.PrependPath == nil {
		return true
	}
	return *o.PrependPath
}

// BoolPtr is a small helper for constructing the *bool fields above.
func BoolPtr(b bool) *bool { return &b }
