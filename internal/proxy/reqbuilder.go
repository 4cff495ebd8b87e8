package proxy

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
)

// Which selects the target or forward destination when building an
// outgoing request.
type Which int

const (
	WhichTarget Which = iota
	WhichForward
)

var upgradeToken = regexp.MustCompile(`(?i)(^|,)\s*upgrade\s*($|,)`)

// BuildOutgoingRequest produces the outbound request descriptor for one
// of the target/forward destinations. body, if non-nil, becomes the
// outbound request body (the web stream pass supplies the inbound body, or
// a copy of it for the forward request; the ws stream pass passes nil).
func BuildOutgoingRequest(ctx *Context, which Which, body io.ReadCloser) (*http.Request, *http.Transport, error) {
	spec := ctx.Options.Target
	if which == WhichForward {
		spec = ctx.Options.Forward
	}
	target, err := spec.Resolve()
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, errMissingTarget
	}

	method := ctx.Options.Method
	if method == "" {
		method = ctx.Req.Method
	}

	rawURL := target.Scheme + "://" + target.HostPort() + outgoingPath(ctx, target)
	req, err := http.NewRequest(method, rawURL, body)
	if err != nil {
		return nil, nil, err
	}

	req.Header = make(http.Header, len(ctx.Req.Header))
	for k, v := range ctx.Req.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	for k, v := range ctx.Options.Headers {
		req.Header[k] = append([]string(nil), v...)
	}

	if ctx.Options.Auth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(ctx.Options.Auth)))
	}

	transport := selectAgent(ctx.Options, target)
	pooled := transport != nil
	if !pooled {
		transport = &http.Transport{DisableKeepAlives: true}
		if !upgradeToken.MatchString(req.Header.Get("Connection")) {
			req.Header.Set("Connection", "close")
		}
	}
	if target.IsSSL() {
		tlsCfg := transport.TLSClientConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{}
		} else {
			tlsCfg = tlsCfg.Clone()
		}
		tlsCfg.InsecureSkipVerify = !ctx.Options.secureDefault()
		transport.TLSClientConfig = tlsCfg
	}

	if ctx.Options.LocalAddress != "" {
		transport.DialContext = localAddrDialer(ctx.Options.LocalAddress)
	}

	if ctx.Options.ChangeOrigin {
		req.Host = changeOriginHost(target)
	}

	return req, transport, nil
}

func outgoingPath(ctx *Context, target *Target) string {
	targetPath := ""
	if ctx.Options.prependPathDefault() {
		targetPath = target.Path
	}

	var inboundPath string
	if ctx.Options.ToProxy {
		inboundPath = ctx.Req.URL.RequestURI()
	} else {
		inboundPath = ctx.Req.URL.Path
		if ctx.Req.URL.RawQuery != "" {
			inboundPath += "?" + ctx.Req.URL.RawQuery
		}
	}
	if ctx.Options.IgnorePath {
		inboundPath = ""
	}

	return urlJoin(targetPath, inboundPath)
}

func changeOriginHost(target *Target) string {
	host := target.Host
	if wellKnownPort(target.Scheme, target.Port) {
		return host
	}
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(target.Port))
}

func selectAgent(o *Options, target *Target) *http.Transport {
	if target.IsSSL() {
		return o.HTTPSAgent
	}
	return o.HTTPAgent
}

func localAddrDialer(addr string) func(ctx context.Context, network, address string) (net.Conn, error) {
	d := &net.Dialer{}
	if ip := net.ParseIP(addr); ip != nil {
		d.LocalAddr = &net.TCPAddr{IP: ip}
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		return d.DialContext(ctx, network, address)
	}
}
