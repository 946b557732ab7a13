package mailman

import (
	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/fetch"
)

// Option alters the adapter settings.
type Option func(*settings)

type settings struct {
	fetchOpts []fetch.Option
	l         *zap.Logger
}

func defaultSettings() settings {
	return settings{
		l: zap.NewNop(),
	}
}

// WithFetchOptions forwards options to the archive fetcher.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(s *settings) {
		s.fetchOpts = append(s.fetchOpts, opts...)
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
