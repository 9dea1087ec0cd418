package credentials

import (
	"context"
	"errors"
	"os"
)

// ErrNoToken is returned by a Source when no access token is available.
// Callers surface it as a prompt to run `irobot auth login`.
var ErrNoToken = errors.New("credentials: no access token available")

// Source supplies the access token for an outgoing connection. Connections
// consult their Source once per open, so a rotated token takes effect on the
// next attempt, never mid-stream.
type Source interface {
	Token(ctx context.Context) (string, error)
}

// StaticSource is a fixed token, useful for tests and for tokens arriving
// through the environment.
type StaticSource string

func (s StaticSource) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// SourceFunc adapts a plain function to a Source.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// fileSource re-reads the credentials file on every Token call, so writes by
// a concurrent `irobot auth login` are picked up without coordination.
type fileSource struct {
	m       *Manager
	profile string
}

// Source returns a Source backed by the stored tokens for the given profile.
func (m *Manager) Source(profile string) Source {
	if profile == "" {
		profile = DefaultProfile
	}
	return &fileSource{m: m, profile: profile}
}

func (s *fileSource) Token(_ context.Context) (string, error) {
	p, err := s.m.Profile(s.profile)
	if err != nil {
		return "", err
	}
	if p.AccessToken == "" {
		return "", ErrNoToken
	}
	return p.AccessToken, nil
}

// DefaultSource resolves the token the way the CLI does everywhere: the
// IROBOT_TOKEN environment variable wins, otherwise the default profile of
// the credentials store.
func DefaultSource(m *Manager) Source {
	if tok := os.Getenv(EnvToken); tok != "" {
		return StaticSource(tok)
	}
	return m.Source(DefaultProfile)
}
