package gerrit

import (
	"go.uber.org/zap"
)

const (
	defaultPort     = 29418
	defaultPageSize = 100
)

// Option alters the adapter settings.
type Option func(*settings)

type settings struct {
	host     string
	port     int
	username string
	keyFile  string
	pageSize int
	runner   Runner
	l        *zap.Logger
}

func defaultSettings() settings {
	return settings{
		port:     defaultPort,
		pageSize: defaultPageSize,
		l:        zap.NewNop(),
	}
}

// WithHost sets the review host to query.
func WithHost(host string) Option {
	return func(s *settings) {
		s.host = host
	}
}

// WithPort overrides the ssh port.
func WithPort(port int) Option {
	return func(s *settings) {
		if port > 0 {
			s.port = port
		}
	}
}

// WithUsername sets the ssh user.
func WithUsername(username string) Option {
	return func(s *settings) {
		s.username = username
	}
}

// WithKeyFile sets the ssh private key file.
func WithKeyFile(path string) Option {
	return func(s *settings) {
		s.keyFile = path
	}
}

// WithPageSize overrides how many reviews one query returns.
func WithPageSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithRunner injects the command runner, bypassing ssh setup. Used by tests.
func WithRunner(r Runner) Option {
	return func(s *settings) {
		s.runner = r
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}
