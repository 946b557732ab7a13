package cmd

import (
	"context"

	"github.com/oneconcern/trawler/pkg/storage"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// updatePids records the pids of the watched consumer processes, so stale
// cache entries they hold can be invalidated when fresh data lands. A failed
// scan only loses this bookkeeping, never the cycle.
func updatePids(ctx context.Context, store storage.Store, watched []string, logger *zap.Logger) {
	if len(watched) == 0 {
		return
	}
	names := make(map[string]struct{}, len(watched))
	for _, name := range watched {
		names[name] = struct{}{}
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		logger.Warn("scanning processes", zap.Error(err))
		return
	}
	var pids []int32
	for _, p := range procs {
		name, nerr := p.NameWithContext(ctx)
		if nerr != nil {
			// gone or not ours to inspect
			continue
		}
		if _, ok := names[name]; ok {
			pids = append(pids, p.Pid)
		}
	}
	if len(pids) == 0 {
		return
	}
	if err := store.ActivePids(ctx, pids); err != nil {
		logger.Warn("recording active pids", zap.Error(err))
		return
	}
	logger.Debug("active pids recorded", zap.Int("count", len(pids)))
}
