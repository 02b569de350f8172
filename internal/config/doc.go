package config

// Package config parses the positional command-line configuration and
// supplies the optional proxy credential as an injected capability.
