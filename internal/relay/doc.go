package relay

// Package relay moves raw bytes between the established tunnel and the
// local byte streams. Each direction runs its own pump loop over its
// own transfer buffer; the session ends only when both directions have
// reached end-of-stream.
