package handshake

// Package handshake implements the client side of the HTTP CONNECT
// exchange: building the request, sending it to the proxy, and
// incrementally reading the proxy's response.
//
// Response parsing is a pure function over the accumulated bytes, so
// the reader can re-parse the same buffer as more data arrives and hand
// back, byte-exact, any pipelined tunnel payload that followed the
// header block.
