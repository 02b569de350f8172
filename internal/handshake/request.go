package handshake

import (
	"encoding/base64"
	"fmt"
	"io"
)

// Request describes a CONNECT tunnel destination. Credential, when
// non-nil, is sent verbatim as the payload of a single
// Proxy-Authorization: Basic header.
type Request struct {
	Host       string
	Port       uint16
	Credential []byte
}

// Encode renders the HTTP/1.0 CONNECT request for r, terminated by a
// blank line.
func (r Request) Encode() []byte {
	b := fmt.Appendf(nil, "CONNECT %s:%d HTTP/1.0\r\n", r.Host, r.Port)
	if r.Credential != nil {
		b = append(b, "Proxy-Authorization: Basic "...)
		b = base64.StdEncoding.AppendEncode(b, r.Credential)
		b = append(b, '\r', '\n')
	}
	return append(b, '\r', '\n')
}

// Send writes the encoded request to w in full.
func Send(w io.Writer, req Request) error {
	if _, err := w.Write(req.Encode()); err != nil {
		return fmt.Errorf("send connect request: %w", err)
	}
	return nil
}
