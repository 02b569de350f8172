package handshake

import (
	"bytes"
	"errors"
	"fmt"
)

// Parser limits mirror the response accumulation strategy: the header
// table starts at 16 slots and grows by 16 when exceeded; the byte
// buffer starts at 4096 and grows by 4096 when full.
const (
	bufferChunk        = 4096
	initialHeaderSlots = 16
	headerSlotsChunk   = 16
)

// ErrMalformedResponse reports a proxy response that can never parse as
// an HTTP header block, no matter how many more bytes arrive.
var ErrMalformedResponse = errors.New("malformed proxy response")

var errTooManyHeaders = errors.New("too many headers")

// parseResult is the outcome of one parse attempt over the accumulated
// response bytes. A zero parseResult with a nil error means the header
// block is not complete yet.
type parseResult struct {
	complete bool
	end      int // offset just past the header terminator, valid when complete
	code     int // status code, -1 when the status line carries none
}

// parseResponse attempts to parse buf as an HTTP response status line
// followed by a header block, accepting at most maxHeaders header
// lines. It consumes nothing; callers re-invoke it over the same
// (grown) buffer as bytes arrive. Lines end in \r\n, with a bare \n
// tolerated.
func parseResponse(buf []byte, maxHeaders int) (parseResult, error) {
	line, rest, ok := cutLine(buf)
	if !ok {
		return parseResult{}, nil
	}
	code, err := parseStatusLine(line)
	if err != nil {
		return parseResult{}, err
	}

	headers := 0
	for {
		line, rest, ok = cutLine(rest)
		if !ok {
			return parseResult{}, nil
		}
		if len(line) == 0 {
			return parseResult{complete: true, end: len(buf) - len(rest), code: code}, nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			// Folded continuation of the previous header.
			continue
		}
		if bytes.IndexByte(line, ':') < 0 {
			return parseResult{}, fmt.Errorf("%w: header line %q has no colon", ErrMalformedResponse, line)
		}
		headers++
		if headers > maxHeaders {
			return parseResult{}, errTooManyHeaders
		}
	}
}

// parseStatusLine extracts the status code from an HTTP response status
// line. A line with a version but no parseable code yields -1; the
// caller classifies that as a rejection, not a parse failure.
func parseStatusLine(line []byte) (int, error) {
	if !bytes.HasPrefix(line, []byte("HTTP/")) {
		return 0, fmt.Errorf("%w: bad status line %q", ErrMalformedResponse, line)
	}

	i := bytes.IndexByte(line, ' ')
	if i < 0 {
		return -1, nil
	}
	rest := line[i+1:]
	for len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}

	code := -1
	for _, c := range rest {
		if c < '0' || c > '9' {
			break
		}
		if code < 0 {
			code = 0
		}
		code = code*10 + int(c-'0')
		if code > 999 {
			return 0, fmt.Errorf("%w: status code out of range", ErrMalformedResponse)
		}
	}
	return code, nil
}

// cutLine splits buf at the first newline, stripping the terminator.
// ok is false when no full line is buffered yet.
func cutLine(buf []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, buf, false
	}
	line = buf[:i]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, buf[i+1:], true
}
