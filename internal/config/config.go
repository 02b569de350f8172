package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// Config holds the positional command-line configuration: where the
// proxy is, where the tunnel should go, and an optional path to a file
// whose raw contents become the Proxy-Authorization credential.
type Config struct {
	ProxyHost string
	ProxyPort uint16
	DestHost  string
	DestPort  uint16
	AuthFile  string
}

// Parse validates args as <proxyhost> <proxyport> <desthost> <destport>
// [authfile]. Both ports must parse as unsigned 16-bit integers.
func Parse(args []string) (Config, error) {
	if len(args) != 4 && len(args) != 5 {
		return Config{}, fmt.Errorf("expected 4 or 5 arguments, got %d", len(args))
	}

	if args[0] == "" {
		return Config{}, errors.New("proxy host must not be empty")
	}
	proxyPort, err := ParsePort(args[1])
	if err != nil {
		return Config{}, fmt.Errorf("invalid proxy port %q: %w", args[1], err)
	}

	if args[2] == "" {
		return Config{}, errors.New("destination host must not be empty")
	}
	destPort, err := ParsePort(args[3])
	if err != nil {
		return Config{}, fmt.Errorf("invalid destination port %q: %w", args[3], err)
	}

	cfg := Config{
		ProxyHost: args[0],
		ProxyPort: proxyPort,
		DestHost:  args[2],
		DestPort:  destPort,
	}
	if len(args) == 5 {
		cfg.AuthFile = args[4]
	}
	return cfg, nil
}

// ParsePort parses s as an unsigned 16-bit port number.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// CredentialSource supplies raw credential bytes for the handshake.
// The bytes are used verbatim; any user:pass structure is the caller's
// responsibility.
type CredentialSource func() ([]byte, error)

// FileCredential returns a CredentialSource that reads path to EOF.
func FileCredential(path string) CredentialSource {
	return func() ([]byte, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read auth file: %w", err)
		}
		return b, nil
	}
}
