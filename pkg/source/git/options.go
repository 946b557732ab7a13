package git

import (
	"go.uber.org/zap"
)

// Option alters the adapter settings.
type Option func(*settings)

type settings struct {
	sourcesRoot  string
	collectStats bool
	l            *zap.Logger
}

func defaultSettings() settings {
	return settings{
		sourcesRoot:  ".trawler/sources",
		collectStats: true,
		l:            zap.NewNop(),
	}
}

// WithSourcesRoot sets the directory local mirrors are kept under.
func WithSourcesRoot(root string) Option {
	return func(s *settings) {
		if root != "" {
			s.sourcesRoot = root
		}
	}
}

// WithStats toggles per commit diff stat collection. Stats walk the commit
// tree and dominate harvesting time on large repos.
func WithStats(enabled bool) Option {
	return func(s *settings) {
		s.collectStats = enabled
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
