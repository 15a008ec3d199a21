package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medistock/tenant-auth/internal/api/metrics"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

const (
	defaultWorkers      = 4
	channelBuffer       = 256
	defaultWriteTimeout = 5 * time.Second
)

// LastLoginWriter is the store method the dispatcher drives.
type LastLoginWriter interface {
	UpdateLastLogin(ctx context.Context, identityID string, at time.Time) error
}

type loginEvent struct {
	identityID string
	at         time.Time
}

// Dispatcher records last-login timestamps off the request path. Events are
// routed to a fixed set of workers by hashing the identity id, so writes for
// one identity are applied in order.
type Dispatcher struct {
	workers      []chan loginEvent
	store        LastLoginWriter
	log          zerolog.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ ports.LoginRecorder = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, store LastLoginWriter, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:      make([]chan loginEvent, numWorkers),
		store:        store,
		log:          log,
		writeTimeout: defaultWriteTimeout,
	}
	for i := range d.workers {
		d.workers[i] = make(chan loginEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled or
// after Close has drained their queues.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// RecordLogin enqueues a last-login write. It never blocks: when the worker's
// queue is full, or the dispatcher is closed, the write is dropped.
func (d *Dispatcher) RecordLogin(_ context.Context, identityID string, at time.Time) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.LastLoginWritesTotal.WithLabelValues("dropped").Inc()
		return
	}

	idx := d.shardIndex(identityID)
	select {
	case d.workers[idx] <- loginEvent{identityID: identityID, at: at}:
		metrics.LastLoginQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.LastLoginWritesTotal.WithLabelValues("dropped").Inc()
		d.log.Warn().Str("identity_id", identityID).Int("worker_id", idx).Msg("last-login queue full, dropping write")
	}
}

// Close stops accepting events and waits for queued writes to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// shardIndex maps an identity id deterministically to a worker index.
func (d *Dispatcher) shardIndex(identityID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan loginEvent) {
	defer d.wg.Done()
	depth := metrics.LastLoginQueueDepth.WithLabelValues(strconv.Itoa(id))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			depth.Set(float64(len(ch)))
			d.write(ctx, id, ev)
		}
	}
}

func (d *Dispatcher) write(ctx context.Context, workerID int, ev loginEvent) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.writeTimeout)
	defer cancel()

	start := time.Now()
	err := d.store.UpdateLastLogin(writeCtx, ev.identityID, ev.at)
	metrics.LastLoginWriteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LastLoginWritesTotal.WithLabelValues("error").Inc()
		d.log.Error().Err(err).
			Str("identity_id", ev.identityID).
			Int("worker_id", workerID).
			Msg("last-login write failed")
		return
	}
	metrics.LastLoginWritesTotal.WithLabelValues("ok").Inc()
}
