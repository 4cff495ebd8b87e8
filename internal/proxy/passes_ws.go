package proxy

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// WSPasses returns the fixed-order WebSocket pipeline: checkMethodAndHeader,
// xHeaders, stream.
func WSPasses() []Pass {
	return []Pass{
		{Name: "checkMethodAndHeader", Run: checkMethodAndHeaderPass},
		{Name: "xHeaders", Run: xHeadersWSPass},
		{Name: "stream", Run: streamWSPass},
	}
}

func checkMethodAndHeaderPass(ctx *Context) bool {
	if ctx.Req.Method != http.MethodGet || !strings.EqualFold(ctx.Req.Header.Get("Upgrade"), "websocket") {
		ctx.Writer.Destroy()
		return true
	}
	return false
}

func xHeadersWSPass(ctx *Context) bool {
	if !ctx.Options.XFwd {
		return false
	}
	applyXForwardedWS(ctx.Req.Header, ctx.Req, ctx.Req.TLS != nil)
	return false
}

func applyXForwardedWS(header http.Header, req *http.Request, encrypted bool) {
	remoteHost, _, _ := net.SplitHostPort(req.RemoteAddr)
	if remoteHost == "" {
		remoteHost = req.RemoteAddr
	}
	appendHeader(header, "X-Forwarded-For", remoteHost)

	httpPort := "80"
	if encrypted {
		httpPort = "443"
	}
	if m := hostPortCapture.FindStringSubmatch(req.Host); m != nil {
		httpPort = m[1]
	}
	appendHeader(header, "X-Forwarded-Port", httpPort)

	proto := "ws"
	if encrypted {
		proto = "wss"
	}
	appendHeader(header, "X-Forwarded-Proto", proto)
}

// streamWSPass splices the client socket to the upstream after completing
// the WebSocket handshake.
func streamWSPass(ctx *Context) bool {
	clientConn, err := Hijack(ctx.Writer.HTTP)
	if err != nil {
		ctx.emitError(KindUpstreamConnect, err)
		return true
	}
	ctx.Writer = NewStreamWriter(clientConn)

	// Step 1: configure the client socket.
	clientConn.SetKeepAlive()

	// Step 2: replay any already-buffered head bytes.
	if len(ctx.Head) > 0 {
		clientConn.PushBack(ctx.Head)
	}

	// Step 3: build the outbound request, merging requestOptions headers.
	outReq, transport, err := BuildOutgoingRequest(ctx, WhichTarget, nil)
	if err != nil {
		ctx.emitError(KindUpstreamConnect, err)
		clientConn.Close()
		return true
	}
	for k, v := range ctx.Options.RequestOptions {
		outReq.Header[k] = v
	}

	target, _ := ctx.Options.Target.Resolve()
	upstreamHost := target.HostPort()

	// Step 4: notify hooks before the handshake is sent.
	ctx.emit(EventProxyReqWS)

	// Step 5-8: dial, handshake, splice.
	upstreamConn, err := dialUpstream(target, transport)
	if err != nil {
		onOutgoingError(ctx, clientConn, err)
		return true
	}

	if err := writeUpgradeRequest(upstreamConn, outReq, upstreamHost); err != nil {
		onOutgoingError(ctx, clientConn, err)
		_ = upstreamConn.Close()
		return true
	}

	resp, rawHeader, reader, err := readUpgradeResponse(upstreamConn)
	if err != nil {
		onOutgoingError(ctx, clientConn, err)
		_ = upstreamConn.Close()
		return true
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		// Step 6: upstream declined the upgrade; relay its response as-is,
		// including the body resp.Body lazily reads from the shared reader.
		_ = resp.Write(clientConn)
		clientConn.Close()
		_ = upstreamConn.Close()
		return true
	}

	// Step 7: splice upstream <-> client, both directions.
	upstreamHijacked := &HijackedConn{Conn: upstreamConn}
	if buffered := reader.Buffered(); buffered > 0 {
		head := make([]byte, buffered)
		_, _ = io.ReadFull(reader, head)
		upstreamHijacked.PushBack(head)
	}
	upstreamHijacked.SetKeepAlive()

	if err := writeSwitchingProtocols(clientConn, rawHeader); err != nil {
		ctx.emitError(KindUpstreamReset, err)
		clientConn.Close()
		_ = upstreamConn.Close()
		return true
	}

	ctx.emit(EventOpen)
	splice(ctx, clientConn, upstreamHijacked)

	return true
}

func dialUpstream(target *Target, transport *http.Transport) (net.Conn, error) {
	if target.IsSSL() {
		tlsCfg := transport.TLSClientConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		}
		return tls.Dial("tcp", target.HostPort(), tlsCfg)
	}
	return net.Dial("tcp", target.HostPort())
}

func writeUpgradeRequest(conn net.Conn, req *http.Request, host string) error {
	req.Host = host
	return req.Write(conn)
}

// readUpgradeResponse reads the upstream's response status line and
// headers off conn, returning both the parsed *http.Response and the raw
// header bytes exactly as received (status line excluded), so a
// successful upgrade can relay them to the client in the order the
// upstream sent them rather than net/http's canonical sorted order.
func readUpgradeResponse(conn net.Conn) (*http.Response, []byte, *bufio.Reader, error) {
	reader := bufio.NewReader(conn)

	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return nil, nil, nil, err
	}

	var rawHeader bytes.Buffer
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, nil, nil, err
		}
		rawHeader.WriteString(line)
		if line == "\r\n" || line == "\n" {
			break
		}
	}

	var consumed bytes.Buffer
	consumed.WriteString(statusLine)
	consumed.Write(rawHeader.Bytes())

	resp, err := http.ReadResponse(bufio.NewReader(io.MultiReader(&consumed, reader)), nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return resp, rawHeader.Bytes(), reader, nil
}

// writeSwitchingProtocols writes the canonical 101 status line followed
// by rawHeader verbatim, preserving the order the upstream sent its
// headers in.
func writeSwitchingProtocols(w io.Writer, rawHeader []byte) error {
	if _, err := fmt.Fprintf(w, "HTTP/1.1 101 Switching Protocols\r\n"); err != nil {
		return err
	}
	_, err := w.Write(rawHeader)
	return err
}

// onOutgoingError implements the shared error path used by every upstream
// subscription in step 5: prefer the caller-supplied errorCb, else emit
// error, then half-close (destroy) the client socket.
func onOutgoingError(ctx *Context, clientConn *HijackedConn, err error) {
	if ctx.OnError != nil {
		ctx.OnError(KindUpstreamConnect, err)
	} else {
		ctx.emitError(KindUpstreamConnect, err)
	}
	clientConn.Close()
}

// splice pipes bytes bidirectionally until either side closes, then emits
// close and tears down both ends.
func splice(ctx *Context, client, upstream *HijackedConn) {
	done := make(chan struct{}, 2)
	go func() {
		_, _ = io.Copy(upstream, client)
		done <- struct{}{}
	}()
	go func() {
		_, _ = io.Copy(client, upstream)
		done <- struct{}{}
	}()
	<-done

	ctx.emit(EventClose)
	_ = client.Close()
	_ = upstream.Close()
}
