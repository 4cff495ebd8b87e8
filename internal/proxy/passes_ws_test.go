package proxy

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// fakeWSUpstream accepts one connection, reads until the blank line
// terminating the HTTP request, then performs a 101 handshake and writes
// a fixed payload that a successful splice should relay to the client.
func fakeWSUpstream(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil || strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}

		// Header order is deliberately not alphabetical, so a regression
		// to net/http's sorted Header.Write would be caught.
		_, _ = conn.Write([]byte("HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nX-Custom-Order: one\r\nConnection: Upgrade\r\nX-Another: two\r\n\r\n"))
		_, _ = conn.Write([]byte("hello-from-upstream"))
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestServerWSSplicesUpgradeResponse(t *testing.T) {
	upstreamAddr := fakeWSUpstream(t)

	srv := NewServer(&Options{WS: true}, slog.Default())
	mux := httptest.NewServer(srv)
	// The leak check is deferred first so it runs last (LIFO order), after
	// conn.Close and mux.Close. mux.Close does not wait for hijacked conns;
	// goleak's retries give the splice goroutines time to exit.
	defer goleak.VerifyNone(t)
	defer mux.Close()

	srv.base.Target = TargetFromValue(&Target{Scheme: "ws", Host: splitHost(upstreamAddr), Port: splitPort(t, upstreamAddr)})

	conn, err := net.Dial("tcp", mux.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req, _ := http.NewRequest(http.MethodGet, "http://"+mux.Listener.Addr().String()+"/socket", nil)
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	if err := req.Write(conn); err != nil {
		t.Fatalf("write request: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	got := string(buf[:n])
	if !strings.HasPrefix(got, "HTTP/1.1 101 Switching Protocols\r\n") {
		t.Fatalf("response did not start with 101 status line, got %q", got)
	}
	wantHeaderOrder := "Upgrade: websocket\r\nX-Custom-Order: one\r\nConnection: Upgrade\r\nX-Another: two\r\n\r\n"
	if !strings.Contains(got, wantHeaderOrder) {
		t.Fatalf("headers not relayed in upstream order, got %q", got)
	}
	if !strings.Contains(got, "hello-from-upstream") {
		// the splice may deliver the payload in a second read.
		n2, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read follow-up: %v", err)
		}
		got += string(buf[:n2])
		if !strings.Contains(got, "hello-from-upstream") {
			t.Fatalf("expected upstream payload to be relayed, got %q", got)
		}
	}
}

func splitHost(addr string) string {
	host, _, _ := net.SplitHostPort(addr)
	return host
}

func splitPort(t *testing.T, addr string) int {
	t.Helper()
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split port: %v", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return p
}
