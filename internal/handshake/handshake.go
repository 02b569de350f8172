package handshake

import (
	"errors"
	"fmt"
	"io"
)

// statusAcceptLimit is the highest status code treated as a successful
// CONNECT. Codes through 407 (Proxy Authentication Required) are
// accepted; anything above, or a status line without a code, is a
// rejection.
const statusAcceptLimit = 407

// Outcome is the result of a completed CONNECT exchange. OK reports
// whether the proxy accepted the tunnel. Leftover holds any bytes the
// proxy sent past the header terminator; they belong to the tunneled
// session and must reach local output before relay begins.
type Outcome struct {
	OK       bool
	Leftover []byte
}

// Exchange sends the CONNECT request for req over rw and reads the
// proxy's response. A rejected tunnel is reported through Outcome.OK,
// not through the error.
func Exchange(rw io.ReadWriter, req Request) (Outcome, error) {
	if err := Send(rw, req); err != nil {
		return Outcome{}, err
	}
	return ReadResponse(rw)
}

// ReadResponse accumulates the proxy's CONNECT response from r and
// classifies it. Reads are retried until the header block is complete;
// the buffer grows by fixed increments when it fills, and the header
// table grows when a parse attempt runs out of slots (a re-parse of the
// same bytes, never a new read). Performs a single handshake attempt
// with no retries.
func ReadResponse(r io.Reader) (Outcome, error) {
	buf := make([]byte, 0, bufferChunk)
	slots := initialHeaderSlots

	for {
		if len(buf) == cap(buf) {
			grown := make([]byte, len(buf), cap(buf)+bufferChunk)
			copy(grown, buf)
			buf = grown
		}

		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]

		if n > 0 {
			for {
				res, perr := parseResponse(buf, slots)
				if errors.Is(perr, errTooManyHeaders) {
					slots += headerSlotsChunk
					continue
				}
				if perr != nil {
					return Outcome{}, perr
				}
				if !res.complete {
					break
				}
				ok := res.code >= 0 && res.code <= statusAcceptLimit
				leftover := append([]byte(nil), buf[res.end:]...)
				return Outcome{OK: ok, Leftover: leftover}, nil
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			return Outcome{}, errors.New("proxy closed connection during handshake")
		case err != nil:
			return Outcome{}, fmt.Errorf("read proxy response: %w", err)
		}
	}
}
