package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"testing/iotest"

	"golang.org/x/sync/errgroup"

	"burrow/internal/testutil"
)

type flushCounter struct {
	bytes.Buffer
	flushes int
}

func (f *flushCounter) Flush() error {
	f.flushes++
	return nil
}

type zeroWriter struct{}

func (zeroWriter) Write(p []byte) (int, error) { return 0, nil }

type errWriter struct{ err error }

func (w errWriter) Write(p []byte) (int, error) { return 0, w.err }

func TestPumpCopiesAllBytes(t *testing.T) {
	// Spans several transfer buffers so the loop iterates.
	src := make([]byte, 3*bufferSize+17)
	for i := range src {
		src[i] = byte(i % 251)
	}

	tests := []struct {
		name string
		r    io.Reader
	}{
		{"large_reads", bytes.NewReader(src)},
		{"one_byte_reads", iotest.OneByteReader(bytes.NewReader(src))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst bytes.Buffer
			if err := Pump(&dst, tt.r); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dst.Bytes(), src) {
				t.Fatalf("copied %d bytes, want %d, content mismatch", dst.Len(), len(src))
			}
		})
	}
}

func TestPumpFlushesEveryWrite(t *testing.T) {
	dst := &flushCounter{}
	if err := Pump(dst, iotest.OneByteReader(strings.NewReader("abc"))); err != nil {
		t.Fatal(err)
	}
	if dst.String() != "abc" {
		t.Fatalf("copied %q, want %q", dst.String(), "abc")
	}
	if dst.flushes != 3 {
		t.Fatalf("flushes = %d, want 3", dst.flushes)
	}
}

func TestPumpZeroWriteEndsCleanly(t *testing.T) {
	if err := Pump(zeroWriter{}, strings.NewReader("data")); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
}

func TestPumpWriteError(t *testing.T) {
	boom := errors.New("sink broken")
	err := Pump(errWriter{err: boom}, strings.NewReader("data"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}
}

func TestPumpReadError(t *testing.T) {
	boom := errors.New("source broken")
	err := Pump(io.Discard, iotest.ErrReader(boom))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestRunLeftoverPrecedesRemoteBytes(t *testing.T) {
	remote, peer := net.Pipe()
	defer remote.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		defer peer.Close()

		want := []byte("local payload")
		buf := make([]byte, len(want))
		if _, err := io.ReadFull(peer, buf); err != nil {
			return err
		}
		if !bytes.Equal(buf, want) {
			return fmt.Errorf("peer received %q, want %q", buf, want)
		}
		_, err := peer.Write([]byte(" and remote payload"))
		return err
	})

	var out bytes.Buffer
	if err := Run(remote, strings.NewReader("local payload"), &out, []byte("leftover first")); err != nil {
		t.Fatal(err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := out.String(); got != "leftover first and remote payload" {
		t.Fatalf("local output = %q", got)
	}
}

func TestRunDuplexEcho(t *testing.T) {
	ctx := context.Background()

	ln, wait := testutil.StartSingleAcceptServer(t, ctx, testutil.EchoHandler)
	defer wait()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	sent := make([]byte, 256*1024)
	for i := range sent {
		sent[i] = byte(i % 253)
	}

	var out bytes.Buffer
	if err := Run(conn, bytes.NewReader(sent), &out, nil); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(out.Bytes(), sent) {
		t.Fatalf("echoed %d bytes, want %d, content mismatch", out.Len(), len(sent))
	}
}

func TestRunDirectionsAreIndependent(t *testing.T) {
	ctx := context.Background()

	received := make(chan []byte, 1)
	ln, wait := testutil.StartSingleAcceptServer(t, ctx, func(c net.Conn) {
		// Finish the remote-to-local direction immediately; the
		// local-to-remote direction must still drain afterward.
		if _, err := c.Write([]byte("remote payload")); err != nil {
			return
		}
		_ = c.(*net.TCPConn).CloseWrite()

		b, _ := io.ReadAll(c)
		received <- b
	})
	defer wait()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var out bytes.Buffer
	if err := Run(conn, strings.NewReader("local payload"), &out, nil); err != nil {
		t.Fatal(err)
	}

	if got := out.String(); got != "remote payload" {
		t.Fatalf("local output = %q, want %q", got, "remote payload")
	}
	if got := string(<-received); got != "local payload" {
		t.Fatalf("remote received = %q, want %q", got, "local payload")
	}
}

func TestRunErrorUnblocksBothDirections(t *testing.T) {
	remote, peer := net.Pipe()
	defer peer.Close()

	// localIn blocks forever until Run closes it on the error path.
	localIn, localInPeer := net.Pipe()
	defer localInPeer.Close()

	g := errgroup.Group{}
	g.Go(func() error {
		_, err := peer.Write([]byte("boom"))
		return err
	})

	err := Run(remote, localIn, errWriter{err: errors.New("tty gone")}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "remote to local") {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestRunFlushesLeftover(t *testing.T) {
	remote, peer := net.Pipe()
	defer remote.Close()

	go func() {
		_ = peer.Close()
	}()

	out := &flushCounter{}
	if err := Run(remote, strings.NewReader(""), out, []byte("banked")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "banked" {
		t.Fatalf("local output = %q, want %q", out.String(), "banked")
	}
	if out.flushes < 1 {
		t.Fatal("leftover was not flushed")
	}
}
