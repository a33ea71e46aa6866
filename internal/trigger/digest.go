package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/localcache"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
)

// LastDigestBucketKey persists the last fired bucket across restarts.
const LastDigestBucketKey = model.CacheKeyPrefix + "lastDigestBucket"

// DigestOptions configures a Digest.
type DigestOptions struct {
	// Schedule is a robfig/cron spec, e.g. "@every 60s".
	Schedule       string
	BucketHours    int
	ActivityWindow time.Duration
	ActivityScan   int
	Clock          func() time.Time
}

// Digest fires the scheduled digest trigger at most once per wall-clock
// bucket, and only after recent user activity.
type Digest struct {
	s     *Scheduler
	cache localcache.Cache
	log   zerolog.Logger
	opts  DigestOptions

	mu   sync.Mutex
	last string
	cron *cron.Cron
	done chan struct{}
}

// NewDigest returns a digest firing through s.
func NewDigest(s *Scheduler, cache localcache.Cache, log zerolog.Logger, opts DigestOptions) *Digest {
	if opts.Schedule == "" {
		opts.Schedule = "@every 60s"
	}
	if opts.BucketHours <= 0 {
		opts.BucketHours = 4
	}
	if opts.ActivityWindow <= 0 {
		opts.ActivityWindow = 4 * time.Hour
	}
	if opts.ActivityScan <= 0 {
		opts.ActivityScan = 50
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Digest{s: s, cache: cache, log: log, opts: opts}
}

// BucketKey formats t as {date}T{hh}, hh rounded down to a multiple of
// hours.
func BucketKey(t time.Time, hours int) string {
	if hours <= 0 {
		hours = 1
	}
	return fmt.Sprintf("%sT%02d", t.Format("2006-01-02"), t.Hour()/hours*hours)
}

// Tick fires the digest if now is in a new bucket and the user was active
// recently. It reports whether a trigger was scheduled.
func (d *Digest) Tick(now time.Time) bool {
	bucket := BucketKey(now, d.opts.BucketHours)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == bucket {
		digestTicks.WithLabelValues("same_bucket").Inc()
		return false
	}
	if persisted := localcache.Load(d.cache, LastDigestBucketKey, ""); persisted == bucket {
		d.last = bucket
		digestTicks.WithLabelValues("same_bucket").Inc()
		return false
	}
	if !d.s.Enabled() {
		digestTicks.WithLabelValues("disabled").Inc()
		return false
	}
	if !RecentActivity(d.s.state.ActivityLog(), now, d.opts.ActivityWindow, d.opts.ActivityScan) {
		digestTicks.WithLabelValues("idle").Inc()
		return false
	}

	d.last = bucket
	if err := localcache.Save(d.cache, LastDigestBucketKey, bucket); err != nil {
		d.log.Warn().Err(err).Str("bucket", bucket).Msg("failed to persist digest bucket")
	}
	if !d.s.submit(model.TriggerScheduledDigest, map[string]any{"bucket": bucket}) {
		digestTicks.WithLabelValues("dropped").Inc()
		return false
	}
	digestTicks.WithLabelValues("fired").Inc()
	d.log.Info().Str("bucket", bucket).Msg("scheduled digest fired")
	return true
}

// RecentActivity reports whether any of the newest scan items of a
// newest-first activity log falls within window before now.
func RecentActivity(log []model.ActivityItem, now time.Time, window time.Duration, scan int) bool {
	cutoff := now.Add(-window)
	for i, item := range log {
		if i >= scan {
			break
		}
		if item.Timestamp.After(cutoff) {
			return true
		}
	}
	return false
}

// Start runs Tick on the configured schedule until ctx is done or Stop is
// called.
func (d *Digest) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(d.opts.Schedule, func() { d.Tick(d.opts.Clock()) }); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", d.opts.Schedule, err)
	}

	d.mu.Lock()
	if d.cron != nil {
		d.mu.Unlock()
		return nil
	}
	d.cron = c
	done := make(chan struct{})
	d.done = done
	d.mu.Unlock()

	c.Start()
	d.log.Debug().Str("schedule", d.opts.Schedule).Msg("digest scheduler started")

	go func() {
		select {
		case <-ctx.Done():
			d.Stop()
		case <-done:
		}
	}()
	return nil
}

// Running reports whether the schedule is active.
func (d *Digest) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cron != nil
}

// Stop halts the schedule and waits for a running tick to return.
func (d *Digest) Stop() {
	d.mu.Lock()
	c, done := d.cron, d.done
	d.cron, d.done = nil, nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	close(done)
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		d.log.Warn().Msg("digest stop timed out waiting for a running tick")
	}
	d.log.Debug().Msg("digest scheduler stopped")
}
