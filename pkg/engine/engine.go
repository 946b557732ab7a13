// Package engine runs the trawler update cycle: load the prerequisite
// dataset, harvest every configured source into runtime storage, apply
// out-of-band corrections and rebuild the module taxonomy.
//
// Sources are resolved through a source.Resolver and isolated from each
// other: one broken repo or list never blocks the rest of the cycle. A
// failed stream leaves its cursor untouched, so the next cycle resumes
// from the same point.
package engine

import (
	"context"

	"github.com/oneconcern/trawler/pkg/dataset"
	"github.com/oneconcern/trawler/pkg/dlogger"
	"github.com/oneconcern/trawler/pkg/engine/status"
	"github.com/oneconcern/trawler/pkg/metrics"
	"github.com/oneconcern/trawler/pkg/model"
	"github.com/oneconcern/trawler/pkg/source"
	"github.com/oneconcern/trawler/pkg/storage"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Engine drives update cycles over one runtime storage.
type Engine struct {
	store   storage.Store
	sources *source.Resolver
	settings
}

// New wires an engine over its storage and source resolver.
func New(store storage.Store, sources *source.Resolver, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		sources:  sources,
		settings: defaultSettings(),
	}
	for _, apply := range opts {
		apply(&e.settings)
	}
	if e.sources == nil {
		e.sources = source.NewResolver()
	}
	return e
}

// Update runs one full cycle and reports what it did. The returned error
// aggregates harvesting and taxonomy failures; a nil error is a clean
// cycle. Failing to load the default dataset is fatal and aborts the cycle
// before anything else runs.
func (e *Engine) Update(ctx context.Context) (*metrics.CycleStats, error) {
	run := e.newRun()
	l := dlogger.WithRun(e.l, run)
	stats := metrics.NewCycleStats(run)

	l.Info("update cycle starting", zap.String("storage", e.store.String()))

	if err := e.loadDefaultData(ctx, l); err != nil {
		l.Error("cannot load default data", zap.Error(err))
		return stats, err
	}

	var errs []error
	errs = append(errs, e.syncRepos(ctx, stats, l)...)
	errs = append(errs, e.syncMailLists(ctx, stats, l)...)
	errs = append(errs, e.syncMemberLists(ctx, stats, l)...)

	if err := e.processor.Update(ctx); err != nil {
		errs = append(errs, status.ErrProcessor.Wrap(err))
	}

	// best effort, never fails the cycle
	e.applyCorrections(ctx, stats, l)

	if err := e.updateTaxonomy(ctx, l); err != nil {
		l.Error("module taxonomy pass failed", zap.Error(err))
		errs = append(errs, err)
	}

	// the cycle is stamped even when some sources failed, consumers watch
	// the update time to pick up whatever did land
	if err := e.stampCycle(ctx, run); err != nil {
		errs = append(errs, err)
	}

	l.Info("update cycle done",
		zap.Duration("elapsed", stats.Elapsed()),
		zap.Any("counts", stats.Fields()),
		zap.Int("errors", len(errs)),
	)
	e.publish(ctx, stats, l)

	return stats, multierr.Combine(errs...)
}

// loadDefaultData fetches and stores the prerequisite dataset. Everything
// after this step reads repos, releases and list URIs from storage.
func (e *Engine) loadDefaultData(ctx context.Context, l *zap.Logger) error {
	if e.defaultDataURI == "" {
		return status.ErrDefaultData.WrapMessage("no default data uri configured")
	}

	document, err := dataset.Fetch(ctx, e.defaultDataURI, e.fetchOpts...)
	if err != nil {
		return status.ErrDefaultData.Wrap(err)
	}
	changed, err := dataset.Process(ctx, e.store, document, e.force, dataset.WithLogger(l))
	if err != nil {
		return status.ErrDefaultData.Wrap(err)
	}
	if changed {
		l.Info("default data updated", zap.String("uri", e.defaultDataURI))
	}
	return nil
}

func (e *Engine) stampCycle(ctx context.Context, run string) error {
	if err := e.store.SetByKey(ctx, model.KeyUpdateTime, e.now().Unix()); err != nil {
		return err
	}
	return e.store.SetByKey(ctx, model.KeyLastRun, run)
}

func (e *Engine) publish(ctx context.Context, stats *metrics.CycleStats, l *zap.Logger) {
	if err := e.publisher.Publish(ctx, stats); err != nil {
		l.Warn("publishing cycle metrics", zap.Error(err))
	}
}
