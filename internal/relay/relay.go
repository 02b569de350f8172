package relay

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// bufferSize is the per-direction transfer buffer size.
const bufferSize = 4096

// Flusher is implemented by sinks that buffer writes. Pump flushes
// after every write so tunneled bytes are never delayed by coalescing
// across iterations.
type Flusher interface {
	Flush() error
}

type closeWriter interface {
	CloseWrite() error
}

// Pump copies src to dst one read at a time until src reaches
// end-of-stream or dst stops accepting bytes. Each iteration writes
// exactly the bytes read, then flushes dst when it supports flushing;
// the buffer is never handed to the next read while a write is in
// flight. A zero-length write without error means the sink has closed,
// which ends the pump as cleanly as source EOF does.
func Pump(dst io.Writer, src io.Reader) error {
	f, _ := dst.(Flusher)
	buf := make([]byte, bufferSize)

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			if werr != nil {
				return fmt.Errorf("write: %w", werr)
			}
			if wn == 0 {
				return nil
			}
			if wn < n {
				return fmt.Errorf("write: %w", io.ErrShortWrite)
			}
			if f != nil {
				if err := f.Flush(); err != nil {
					return fmt.Errorf("flush: %w", err)
				}
			}
		}
		switch {
		case rerr == io.EOF:
			return nil
		case rerr != nil:
			return fmt.Errorf("read: %w", rerr)
		case n == 0:
			return nil
		}
	}
}

// Run relays bytes bidirectionally between remote and the local
// streams until both directions reach end-of-stream. Leftover bytes
// captured during the handshake are written and flushed to localOut
// first, before either direction starts, so they precede anything the
// relay reads from the remote side.
//
// The two directions are independent: one closing cleanly does not stop
// the other, and Run returns only once both have finished. When the
// local side reaches EOF the remote connection is half-closed (when it
// supports CloseWrite) so the peer observes end-of-stream while
// remote-to-local traffic keeps draining. A pump error closes both
// endpoints to unblock the other direction and is returned.
func Run(remote io.ReadWriter, localIn io.Reader, localOut io.Writer, leftover []byte) error {
	if len(leftover) > 0 {
		if _, err := localOut.Write(leftover); err != nil {
			return fmt.Errorf("write leftover: %w", err)
		}
		if f, ok := localOut.(Flusher); ok {
			if err := f.Flush(); err != nil {
				return fmt.Errorf("flush leftover: %w", err)
			}
		}
	}

	g, gctx := errgroup.WithContext(context.Background())

	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			if c, ok := remote.(io.Closer); ok {
				_ = c.Close()
			}
			if c, ok := localIn.(io.Closer); ok {
				_ = c.Close()
			}
		})
	}
	// gctx is canceled by the first pump error; close both endpoints so
	// the other pump unblocks instead of stalling the session.
	stop := context.AfterFunc(gctx, closeBoth)
	defer stop()

	g.Go(func() error {
		if err := Pump(localOut, remote); err != nil {
			return fmt.Errorf("remote to local: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := Pump(remote, localIn)
		if cw, ok := remote.(closeWriter); ok {
			_ = cw.CloseWrite()
		}
		if err != nil {
			return fmt.Errorf("local to remote: %w", err)
		}
		return nil
	})

	return g.Wait()
}
