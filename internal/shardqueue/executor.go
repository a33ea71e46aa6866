// Package shardqueue provides a sharded work queue that guarantees FIFO order
// per key while allowing parallelism across keys.
//
// Remote write-through uses one key per table so writes to a table land in
// the order they were made; the trigger scheduler uses one key per rotation
// chain so firings of a chain never overlap.
//
// Callers must not invoke Submit concurrently for the same key. FIFO ordering
// relies on that external serialisation.
package shardqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

type queuedJob struct {
	ctx context.Context
	key string
	job Job
}

// Executor runs Jobs on worker goroutines partitioned by a stable hash of
// the key. Jobs with different keys may run in parallel.
type Executor struct {
	cfg    Config
	queues []chan queuedJob

	done   chan struct{}
	closed uint32

	wg sync.WaitGroup
}

// New constructs the executor and starts its shard workers.
func New(cfg Config) *Executor {
	if cfg.Shards <= 0 {
		cfg.Shards = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 20 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	p := &Executor{
		cfg:    cfg,
		queues: make([]chan queuedJob, cfg.Shards),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Submit enqueues job for the shard derived from key.
//
//   - Returns nil on success.
//   - Returns ErrExecutorClosed if the executor is stopped.
//   - Returns a *QueueFullError if the shard is still full after
//     EnqueueTimeout.
//   - Returns ctx.Err() if ctx is cancelled first.
func (p *Executor) Submit(ctx context.Context, key string, job Job) error {
	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	shard := p.shardFor(key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- queuedJob{ctx: ctx, key: key, job: job}:
		submissionsTotal.WithLabelValues(p.cfg.Name, labelFor(shard)).Inc()
		return nil

	case <-p.done:
		return ErrExecutorClosed

	case <-ctx.Done():
		return ctx.Err()

	case <-timer.C:
		queueFullTotal.WithLabelValues(p.cfg.Name, labelFor(shard)).Inc()
		return &QueueFullError{
			Key:      key,
			Shard:    shard,
			Length:   len(ch),
			Capacity: cap(ch),
		}
	}
}

// Barrier enqueues a no-op job on the shard for key and waits until it runs,
// so every job previously submitted for that key has completed.
func (p *Executor) Barrier(ctx context.Context, key string) error {
	done := make(chan struct{})
	j := JobFunc(func(context.Context) error {
		close(done)
		return nil
	})
	if err := p.Submit(ctx, key, j); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Stop signals every worker to drain its queue, waits for them to finish and
// returns. It is idempotent and safe for concurrent use.
func (p *Executor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	p.cfg.Logger.Debug().Str("executor", p.cfg.Name).Int("shards", p.cfg.Shards).Msg("shardqueue: stopping, draining shards")

	close(p.done)
	p.wg.Wait()

	p.cfg.Logger.Debug().Str("executor", p.cfg.Name).Msg("shardqueue: stopped")
}

// Close lets Executor satisfy io.Closer.
func (p *Executor) Close() error {
	p.Stop()
	return nil
}

func (p *Executor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			if qj.job == nil {
				continue
			}
			if !p.runJob(label, qj) {
				return
			}
			queueDepth.WithLabelValues(p.cfg.Name, label).Set(float64(len(ch)))

		case <-p.done:
			p.drain(idx, ch)
			queueDepth.WithLabelValues(p.cfg.Name, label).Set(0)
			return
		}
	}
}

// runJob executes one job with retries. It returns false when the executor
// stopped during a backoff wait.
func (p *Executor) runJob(label string, qj queuedJob) (keepRunning bool) {
	// A panicking job must not take its shard down with it.
	defer func() {
		if r := recover(); r != nil {
			failuresTotal.WithLabelValues(p.cfg.Name, "panic").Inc()
			p.cfg.Logger.Error().Str("executor", p.cfg.Name).Str("key", qj.key).Interface("panic", r).Msg("shardqueue: job panic")
			keepRunning = true
		}
	}()

	select {
	case <-qj.ctx.Done():
		failuresTotal.WithLabelValues(p.cfg.Name, "cancelled").Inc()
		p.safeHandleError(qj.ctx.Err())
		return true
	default:
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := qj.job.Run(qj.ctx)
		runDuration.WithLabelValues(p.cfg.Name, label).Observe(time.Since(start).Seconds())

		if err == nil {
			return true
		}
		if p.irrecoverable(err) {
			failuresTotal.WithLabelValues(p.cfg.Name, "irrecoverable").Inc()
			p.safeHandleError(err)
			return true
		}
		if attempt >= p.cfg.MaxAttempts {
			failuresTotal.WithLabelValues(p.cfg.Name, "exhausted").Inc()
			p.safeHandleError(err)
			return true
		}

		p.cfg.Logger.Debug().Err(err).Str("executor", p.cfg.Name).Str("key", qj.key).Int("attempt", attempt).Msg("shardqueue: retrying job")
		wait := time.NewTimer(exp.NextBackOff())
		select {
		case <-wait.C:
		case <-p.done:
			wait.Stop()
			return false
		case <-qj.ctx.Done():
			wait.Stop()
			failuresTotal.WithLabelValues(p.cfg.Name, "cancelled").Inc()
			p.safeHandleError(qj.ctx.Err())
			return true
		}
	}
}

// drain runs what is left in the queue once, preserving FIFO, then returns.
func (p *Executor) drain(idx int, ch <-chan queuedJob) {
	drained := 0
	for {
		select {
		case qj := <-ch:
			if qj.job == nil {
				continue
			}
			func() {
				defer func() { _ = recover() }()
				if err := qj.job.Run(qj.ctx); err != nil {
					p.safeHandleError(err)
				}
			}()
			drained++
		default:
			if drained > 0 {
				p.cfg.Logger.Debug().Str("executor", p.cfg.Name).Int("shard", idx).Int("jobs", drained).Msg("shardqueue: drained")
			}
			return
		}
	}
}

func (p *Executor) irrecoverable(err error) bool {
	if isPermanent(err) {
		return true
	}
	return p.cfg.Irrecoverable != nil && p.cfg.Irrecoverable(err)
}

func (p *Executor) safeHandleError(err error) {
	if err == nil || p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Logger.Error().Interface("panic", r).Msg("shardqueue: error handler panic")
		}
	}()
	p.cfg.ErrorHandler(err)
}

func (p *Executor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
