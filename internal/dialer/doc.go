package dialer

// Package dialer provides the outbound TCP dialer used to reach the
// forward proxy, with connect timeout and TCP keepalive configuration.
