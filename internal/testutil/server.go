package testutil

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
)

// StartSingleAcceptServer starts a loopback TCP listener that hands its
// first accepted connection to handler. The returned wait func closes
// the listener and blocks until the handler has finished.
func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		handler(c)
	})

	wait := func() {
		_ = ln.Close()
		wg.Wait()
	}

	return ln, wait
}

// EchoHandler copies everything read from c back to c until EOF.
func EchoHandler(c net.Conn) {
	buf := make([]byte, 1024)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			if _, werr := c.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// ConnectProxyHandler behaves like a forward proxy that accepts any
// CONNECT request: it discards bytes until the end of the request
// headers, sends response, then echoes the tunneled bytes.
func ConnectProxyHandler(response string) func(net.Conn) {
	return func(c net.Conn) {
		if err := discardRequestHead(c); err != nil {
			return
		}
		if _, err := io.WriteString(c, response); err != nil {
			return
		}
		EchoHandler(c)
	}
}

// discardRequestHead reads from c until the blank line ending the
// request headers.
func discardRequestHead(c net.Conn) error {
	var last [4]byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(c, buf); err != nil {
			return err
		}
		copy(last[:], last[1:])
		last[3] = buf[0]
		if string(last[:]) == "\r\n\r\n" {
			return nil
		}
	}
}
