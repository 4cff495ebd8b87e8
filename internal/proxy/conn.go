package proxy

import (
	"bufio"
	"net"
	"net/http"
	"time"
)

// HijackedConn wraps the raw connection obtained from hijacking an
// http.ResponseWriter, along with the buffered reader the net/http server
// had already filled. Reads first drain that buffer (which may still hold
// bytes read past the request line/headers boundary — the "head buffer"
// the WebSocket passes push back onto the front of the queue) before
// falling through to the underlying socket.
type HijackedConn struct {
	net.Conn
	Buf *bufio.ReadWriter
}

// Hijack upgrades an HTTP response writer to a raw connection, the first
// step of the ws stream pass.
func Hijack(w http.ResponseWriter) (*HijackedConn, error) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, errNotHijackable
	}
	conn, buf, err := hj.Hijack()
	if err != nil {
		return nil, err
	}
	return &HijackedConn{Conn: conn, Buf: buf}, nil
}

// Read drains the buffered reader before touching the underlying socket,
// so bytes already read by the HTTP server (including any head buffer
// pushed back by PushBack) are seen first.
func (c *HijackedConn) Read(p []byte) (int, error) {
	if c.Buf != nil && c.Buf.Reader.Buffered() > 0 {
		return c.Buf.Read(p)
	}
	return c.Conn.Read(p)
}

// Write goes straight to the socket; there is nothing useful to buffer on
// the write side for a spliced tunnel.
func (c *HijackedConn) Write(p []byte) (int, error) {
	return c.Conn.Write(p)
}

// PushBack makes head visible at the front of the next Read, implementing
// the glossary's "head buffer" replay requirement.
func (c *HijackedConn) PushBack(head []byte) {
	if len(head) == 0 {
		return
	}
	if c.Buf == nil {
		c.Buf = bufio.NewReadWriter(bufio.NewReader(c.Conn), bufio.NewWriter(c.Conn))
	}
	// Keep anything the old reader still buffers behind head, and load it
	// all into the new reader's buffer so Read's Buffered() check sees it.
	pending, _ := c.Buf.Reader.Peek(c.Buf.Reader.Buffered())
	data := make([]byte, 0, len(head)+len(pending))
	data = append(append(data, head...), pending...)
	r := bufio.NewReaderSize(&prependReader{head: data, r: c.Conn}, len(data))
	_, _ = r.Peek(len(data))
	c.Buf.Reader = r
}

// SetKeepAlive configures the socket for a long-lived tunnel: no idle
// timeout, TCP keep-alive on. Nagle's algorithm is deliberately left
// enabled (no SetNoDelay call).
func (c *HijackedConn) SetKeepAlive() {
	_ = c.Conn.SetDeadline(time.Time{})
	if tc, ok := c.Conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(0)
	}
}

// prependReader serves head first, then falls through to r.
type prependReader struct {
	head []byte
	r    net.Conn
}

func (p *prependReader) Read(b []byte) (int, error) {
	if len(p.head) > 0 {
		n := copy(b, p.head)
		p.head = p.head[n:]
		return n, nil
	}
	return p.r.Read(b)
}
