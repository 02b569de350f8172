package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"burrow/internal/config"
	"burrow/internal/dialer"
	"burrow/internal/handshake"
	"burrow/internal/relay"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for DNS lookup and TCP connect to the proxy")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for the CONNECT exchange with the proxy. 0 disables.")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		verbose            = pflag.Bool("verbose", false, "Enable per-session logging on stderr")
		showVersion        = pflag.Bool("version", false, "Print version and exit")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Usage = usage
	pflag.Parse()

	if *showVersion {
		fmt.Printf("burrow %s\n", version)
		return nil
	}

	args := pflag.Args()
	if len(args) != 4 && len(args) != 5 {
		usage()
		return nil
	}

	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	var credential []byte
	if cfg.AuthFile != "" {
		credential, err = config.FileCredential(cfg.AuthFile)()
		if err != nil {
			return err
		}
	}

	d := dialer.NewDirectDialer(dialer.Config{
		DialTimeout: *dialTimeout,
		KeepAlive:   ka,
	})

	proxyAddr := net.JoinHostPort(cfg.ProxyHost, strconv.Itoa(int(cfg.ProxyPort)))
	conn, err := d.DialContext(context.Background(), "tcp", proxyAddr)
	if err != nil {
		return fmt.Errorf("cannot connect to proxy: %w", err)
	}
	defer conn.Close()

	if *verbose {
		log.Printf("connected to proxy %s", proxyAddr)
	}

	if *negotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(*negotiationTimeout))
	}

	out, err := handshake.Exchange(conn, handshake.Request{
		Host:       cfg.DestHost,
		Port:       cfg.DestPort,
		Credential: credential,
	})
	if err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("proxy could not open connection to %s:%d", cfg.DestHost, cfg.DestPort)
	}

	if *negotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	if *verbose {
		log.Printf("tunnel to %s:%d established (%d leftover bytes)", cfg.DestHost, cfg.DestPort, len(out.Leftover))
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Printf("warning: stdout is a terminal; raw tunnel bytes will be written to it")
	}

	if err := relay.Run(conn, os.Stdin, os.Stdout, out.Leftover); err != nil {
		return err
	}

	if *verbose {
		log.Printf("session closed")
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "burrow %s - stdio HTTP CONNECT tunnel helper\n\n", version)
	fmt.Fprintf(os.Stderr, "usage: burrow [flags] <proxyhost> <proxyport> <desthost> <destport> [authfile]\n\n")
	pflag.PrintDefaults()
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}
