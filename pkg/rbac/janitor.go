package rbac

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/planwise/planwise/pkg/observability"
)

// Janitor periodically reclaims expired snapshots from the SQL backend.
// Expired snapshots already read as misses, so the sweep exists only to
// keep the cached_permissions blobs from accumulating on user rows.
type Janitor struct {
	store    *SQLSnapshotStore
	ttl      time.Duration
	interval time.Duration
	logger   *observability.Logger
	metrics  *observability.Metrics
	cron     *cron.Cron
}

// NewJanitor creates a janitor sweeping every interval. Snapshots older
// than ttl are purged.
func NewJanitor(store *SQLSnapshotStore, ttl, interval time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Janitor {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		cron:     cron.New(),
	}
}

// Start schedules the sweep. Returns immediately.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc("@every "+j.interval.String(), j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.ttl)
	purged, err := j.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		j.logger.WithError(err).Warn("snapshot sweep failed")
		return
	}
	if purged > 0 {
		j.metrics.SnapshotsPurgedTotal.Add(float64(purged))
		j.logger.Info("purged expired permission snapshots", "count", purged)
	}
}
