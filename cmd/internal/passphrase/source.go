package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source lazily resolves a keystore passphrase. It checks, in order, the
// environment variable, the configured passphrase file and finally prompts on
// the terminal. The first resolution is cached.
type Source struct {
	envVar string
	label  string
	file   string
	lookup func(string) (string, bool)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// interactively prompting on the terminal. label names the keystore in prompts
// and errors, e.g. "operator keystore".
func NewSource(envVar, label string, opts ...Option) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "keystore"
	}
	src := &Source{envVar: strings.TrimSpace(envVar), label: label, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(src)
	}
	return src
}

// Option customises a Source.
type Option func(*Source)

// WithFile reads the passphrase from path when the environment variable is
// unset. The file must not be readable by group or others.
func WithFile(path string) Option {
	return func(s *Source) { s.file = strings.TrimSpace(path) }
}

// WithLookup replaces the environment lookup.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(s *Source) {
		if lookup != nil {
			s.lookup = lookup
		}
	}
}

func (s *Source) readFile() (string, error) {
	info, err := os.Stat(s.file)
	if err != nil {
		return "", fmt.Errorf("%s passphrase file: %w", s.label, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return "", fmt.Errorf("%s passphrase file %s must not be accessible by group or others (mode %s)", s.label, s.file, info.Mode().Perm())
	}
	raw, err := os.ReadFile(s.file)
	if err != nil {
		return "", fmt.Errorf("%s passphrase file: %w", s.label, err)
	}
	value := strings.TrimRight(string(raw), "\r\n")
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s passphrase file %s is empty", s.label, s.file)
	}
	return value, nil
}

// Get returns the cached passphrase or resolves it if this is the first call.
// Whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := s.lookup(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		if s.file != "" {
			s.value, s.err = s.readFile()
			return
		}

		if !term.IsTerminal(int(os.Stdin.Fd())) {
			if s.envVar != "" {
				s.err = fmt.Errorf("%s passphrase required; set %s or run interactively", s.label, s.envVar)
			} else {
				s.err = fmt.Errorf("%s passphrase required and no terminal available", s.label)
			}
			return
		}

		fmt.Fprintf(os.Stderr, "Enter %s passphrase: ", s.label)
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}

		passphrase := string(bytes)
		if strings.TrimSpace(passphrase) == "" {
			s.err = errors.New(s.label + " passphrase cannot be empty")
			return
		}

		s.value = passphrase
	})

	return s.value, s.err
}
