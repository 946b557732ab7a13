package engine

import (
	"time"

	"github.com/oneconcern/trawler/pkg/fetch"
	"github.com/oneconcern/trawler/pkg/metrics"
	"github.com/oneconcern/trawler/pkg/process"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

const defaultConcurrency = 4

// Option alters the way update cycles run.
type Option func(*settings)

type settings struct {
	l              *zap.Logger
	processor      process.Processor
	concurrency    int
	force          bool
	defaultDataURI string
	correctionsURI string
	programListURI string
	fetchOpts      []fetch.Option
	publisher      *metrics.Publisher
	now            func() time.Time
	newRun         func() string
}

func defaultSettings() settings {
	return settings{
		l:           zap.NewNop(),
		processor:   process.New(),
		concurrency: defaultConcurrency,
		now:         time.Now,
		newRun:      func() string { return ksuid.New().String() },
	}
}

// WithLogger sets a logger for the engine. All cycle logs carry the run
// token of the cycle that emitted them.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}

// WithProcessor replaces the default record processor.
func WithProcessor(p process.Processor) Option {
	return func(s *settings) {
		if p != nil {
			s.processor = p
		}
	}
}

// WithConcurrency caps how many repos sync in parallel. Branches of one
// repo always sync sequentially, whatever the cap.
func WithConcurrency(workers int) Option {
	return func(s *settings) {
		if workers > 0 {
			s.concurrency = workers
		}
	}
}

// WithForce makes the next cycle rewrite the default dataset even when its
// digest is unchanged.
func WithForce(force bool) Option {
	return func(s *settings) {
		s.force = force
	}
}

// WithDefaultDataURI names the prerequisite dataset document. A cycle
// cannot run without it.
func WithDefaultDataURI(uri string) Option {
	return func(s *settings) {
		s.defaultDataURI = uri
	}
}

// WithCorrectionsURI names the out-of-band corrections document. Empty
// skips the corrections pass.
func WithCorrectionsURI(uri string) Option {
	return func(s *settings) {
		s.correctionsURI = uri
	}
}

// WithProgramListURI names the official program feed. Empty skips the feed
// layer of the taxonomy, modules still register as their own groups.
func WithProgramListURI(uri string) Option {
	return func(s *settings) {
		s.programListURI = uri
	}
}

// WithFetchOptions forwards options to every document fetch the engine
// performs itself. Source adapters carry their own.
func WithFetchOptions(opts ...fetch.Option) Option {
	return func(s *settings) {
		s.fetchOpts = append(s.fetchOpts, opts...)
	}
}

// WithMetrics publishes cycle stats to a metrics backend at the end of
// every cycle.
func WithMetrics(publisher *metrics.Publisher) Option {
	return func(s *settings) {
		s.publisher = publisher
	}
}

// WithClock overrides the time source used to stamp the cycle.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
