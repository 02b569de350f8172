package testutil

// Package testutil provides small loopback servers shared by the
// handshake and relay tests.
