package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// WebPasses returns the fixed-order web pipeline: deleteLength, timeout,
// xHeaders, stream.
func WebPasses() []Pass {
	return []Pass{
		{Name: "deleteLength", Run: deleteLengthPass},
		{Name: "timeout", Run: timeoutPass},
		{Name: "xHeaders", Run: xHeadersWebPass},
		{Name: "stream", Run: streamWebPass},
	}
}

func deleteLengthPass(ctx *Context) bool {
	req := ctx.Req
	if (req.Method == http.MethodDelete || req.Method == http.MethodOptions) && req.Header.Get("Content-Length") == "" {
		req.Header.Set("Content-Length", "0")
		req.Header.Del("Transfer-Encoding")
	}
	return false
}

// connCtxKey is the key under which the raw inbound net.Conn is stashed
// via http.Server.ConnContext, so passes that need socket-level control
// (timeout, ws stream's hijack) can reach it without net/http exposing it
// directly on *http.Request.
type connCtxKey struct{}

// WithConn returns a ConnContext hook suitable for http.Server.ConnContext.
func WithConn(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, connCtxKey{}, c)
}

func connFromRequest(req *http.Request) (net.Conn, bool) {
	c, ok := req.Context().Value(connCtxKey{}).(net.Conn)
	return c, ok
}

func timeoutPass(ctx *Context) bool {
	if ctx.Options.Timeout <= 0 {
		return false
	}
	if conn, ok := connFromRequest(ctx.Req); ok {
		_ = conn.SetDeadline(time.Now().Add(ctx.Options.Timeout))
	}
	return false
}

var hostPortCapture = regexp.MustCompile(`:(\d+)$`)

func xHeadersWebPass(ctx *Context) bool {
	if !ctx.Options.XFwd {
		return false
	}
	applyXForwarded(ctx.Req.Header, ctx.Req, ctx.Req.TLS != nil)
	return false
}

// applyXForwarded appends the three x-forwarded-* headers, shared by the
// web and ws xHeaders passes.
func applyXForwarded(header http.Header, req *http.Request, encrypted bool) {
	remoteHost, _, _ := net.SplitHostPort(req.RemoteAddr)
	if remoteHost == "" {
		remoteHost = req.RemoteAddr
	}
	appendHeader(header, "X-Forwarded-For", remoteHost)

	port := "80"
	if encrypted {
		port = "443"
	}
	if m := hostPortCapture.FindStringSubmatch(req.Host); m != nil {
		port = m[1]
	}
	appendHeader(header, "X-Forwarded-Port", port)

	proto := "http"
	if encrypted {
		proto = "https"
	}
	appendHeader(header, "X-Forwarded-Proto", proto)
}

func appendHeader(header http.Header, key, value string) {
	existing := header.Get(key)
	if existing == "" {
		header.Set(key, value)
		return
	}
	header.Set(key, existing+","+value)
}

// streamWebPass is the terminal web pass: it issues the outbound
// request(s), pipes bodies, and copies the response back.
func streamWebPass(ctx *Context) bool {
	targetBody := ctx.Req.Body
	if !ctx.Options.Forward.IsZero() {
		forwardBody, remainder, err := teeRequestBody(ctx.Req.Body)
		if err != nil {
			ctx.emitError(KindForwardError, err)
		} else {
			targetBody = remainder
			fireForward(ctx, forwardBody)
		}
	}
	if ctx.Options.Target.IsZero() {
		return true
	}

	outReq, transport, err := BuildOutgoingRequest(ctx, WhichTarget, targetBody)
	if err != nil {
		ctx.emitError(KindUpstreamConnect, err)
		if !ctx.Options.HandleErrors {
			ctx.Writer.Destroy()
		}
		return true
	}
	outReq = outReq.WithContext(ctx.Req.Context())

	ctx.emit(EventProxyReq)

	client := &http.Client{
		Transport:     transport,
		CheckRedirect: neverFollowRedirects,
	}
	if ctx.Options.ProxyTimeout > 0 {
		client.Timeout = ctx.Options.ProxyTimeout
	}
	resp, err := client.Do(outReq)
	if err != nil {
		classifyUpstreamError(ctx, err)
		return true
	}
	defer resp.Body.Close()

	ctx.emit(EventProxyRes)

	if ctx.Options.SelfHandleResponse {
		return true
	}

	copyResponse(ctx, resp)
	return true
}

func neverFollowRedirects(_ *http.Request, _ []*http.Request) error {
	return http.ErrUseLastResponse
}

func copyResponse(ctx *Context, resp *http.Response) {
	w := ctx.Writer.HTTP
	dst := w.Header()
	for k, v := range resp.Header {
		dst[k] = v
	}

	RewriteLocation(dst, resp.StatusCode, ctx.Req.Host, ctx.Options)
	RewriteSetCookie(dst, ctx.Options.CookieDomainRewrite, ctx.Options.CookiePathRewrite)

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		ctx.emitError(KindUpstreamReset, err)
	}
}

// teeRequestBody reads body fully and returns two independent readers
// over its bytes, so the target and forward outbound requests can each
// consume a full copy of the single inbound body.
func teeRequestBody(body io.ReadCloser) (io.ReadCloser, io.ReadCloser, error) {
	if body == nil || body == http.NoBody {
		return http.NoBody, http.NoBody, nil
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), io.NopCloser(bytes.NewReader(data)), nil
}

func fireForward(ctx *Context, body io.ReadCloser) {
	outReq, transport, err := BuildOutgoingRequest(ctx, WhichForward, body)
	if err != nil {
		ctx.emitError(KindForwardError, err)
		return
	}
	go func() {
		client := &http.Client{Transport: transport}
		resp, err := client.Do(outReq)
		if err != nil {
			ctx.emitError(KindForwardError, err)
			return
		}
		_ = resp.Body.Close()
	}()
}

func classifyUpstreamError(ctx *Context, err error) {
	kind := KindUpstreamConnect
	if isResetError(err) {
		kind = KindUpstreamReset
		ctx.emit(EventEConnReset)
	}
	ctx.emitError(kind, err)
	// With HandleErrors the default responder has already completed the
	// response; destroying it as well would truncate that 502.
	if ctx.OnError == nil && !ctx.Options.HandleErrors {
		ctx.Writer.Destroy()
	}
}

func isResetError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "reset")
}
