package engine

import (
	"context"

	"github.com/oneconcern/trawler/pkg/fetch"
	"github.com/oneconcern/trawler/pkg/metrics"
	"github.com/oneconcern/trawler/pkg/model"
	"go.uber.org/zap"
)

// applyCorrections fetches the corrections document and amends stored
// records. The pass is best effort: an unreachable or malformed document
// skips it with an error log, corrections never fail a cycle.
func (e *Engine) applyCorrections(ctx context.Context, stats *metrics.CycleStats, l *zap.Logger) {
	if e.correctionsURI == "" {
		l.Debug("no corrections uri configured, skipping")
		return
	}
	l.Info("applying corrections", zap.String("uri", e.correctionsURI))

	var document model.CorrectionsDocument
	if err := fetch.JSON(ctx, e.correctionsURI, &document, e.fetchOpts...); err != nil {
		l.Error("corrections pass skipped", zap.String("uri", e.correctionsURI), zap.Error(err))
		return
	}

	valid := make([]model.Correction, 0, len(document.Corrections))
	for _, correction := range document.Corrections {
		if correction.PrimaryKey() == "" {
			l.Warn("correction misses primary key", zap.Any("correction", correction))
			continue
		}
		valid = append(valid, correction)
	}

	applied, err := e.store.ApplyCorrections(ctx, valid)
	stats.CorrectionsApplied.Add(int64(applied))
	if err != nil {
		l.Error("corrections pass failed", zap.Error(err))
		return
	}
	l.Info("corrections applied", zap.Int("applied", applied), zap.Int("accepted", len(valid)))
}
