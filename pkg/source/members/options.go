package members

import (
	"time"

	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/fetch"
)

// Option alters the adapter settings.
type Option func(*settings)

type settings struct {
	lookAhead    int
	rescanPeriod time.Duration
	fetchOpts    []fetch.Option
	now          func() time.Time
	l            *zap.Logger
}

func defaultSettings() settings {
	return settings{
		lookAhead:    10,
		rescanPeriod: 30 * 24 * time.Hour,
		now:          time.Now,
		l:            zap.NewNop(),
	}
}

// WithLookAhead sets how many consecutive empty profile indexes end the walk.
// Rosters have holes where members were deleted.
func WithLookAhead(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.lookAhead = n
		}
	}
}

// WithRescanPeriod sets how often the roster is walked again from the start,
// picking up profile edits behind the index.
func WithRescanPeriod(period time.Duration) Option {
	return func(s *settings) {
		if period > 0 {
			s.rescanPeriod = period
		}
	}
}

// WithFetchOptions forwards options to the profile fetcher.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(s *settings) {
		s.fetchOpts = append(s.fetchOpts, opts...)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
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
