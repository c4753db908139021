// Package audit records security events without blocking request handling.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/models"
)

const (
	DefaultBufferSize   = 1024
	DefaultWriteTimeout = 3 * time.Second
	errorsBuffer        = 16
)

type Config struct {
	BufferSize   int           // DefaultBufferSize if zero
	WriteTimeout time.Duration // DefaultWriteTimeout if zero
	Clock        clock.Clock   // clock.Real if nil
}

type Stats struct {
	Recorded uint64
	Dropped  uint64 // buffer was full
	Failed   uint64 // sink returned error
}

type item struct {
	entry models.AuditEntry
	flush chan struct{} // set for flush markers only
}

// Recorder queues entries into bounded buffer drained by one goroutine.
// Record never blocks: when buffer is full the entry is dropped and counted.
type Recorder struct {
	sink         Sink
	writeTimeout time.Duration
	clock        clock.Clock

	ch   chan item
	done chan struct{}
	errs chan error
	wg   sync.WaitGroup

	recorded atomic.Uint64
	dropped  atomic.Uint64
	failed   atomic.Uint64

	mu        sync.RWMutex // held by senders as readers, by Close as writer
	closed    bool
	closeOnce sync.Once
}

func NewRecorder(sink Sink, cfg Config) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real
	}

	r := &Recorder{
		sink:         sink,
		writeTimeout: cfg.WriteTimeout,
		clock:        cfg.Clock,
		ch:           make(chan item, cfg.BufferSize),
		done:         make(chan struct{}),
		errs:         make(chan error, errorsBuffer),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case it := <-r.ch:
			r.handle(it)
		case <-r.done:
			for {
				select {
				case it := <-r.ch:
					r.handle(it)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) handle(it item) {
	if it.flush != nil {
		close(it.flush)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if err := r.sink.Write(ctx, it.entry); err != nil {
		r.failed.Add(1)
		select {
		case r.errs <- err:
		default:
		}
		return
	}
	r.recorded.Add(1)
}

// Record queues the entry. Missing id and timestamp are filled in.
func (r *Recorder) Record(ctx context.Context, entry models.AuditEntry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.clock.Now()
	}
	if entry.Severity == "" {
		entry.Severity = models.SeverityInfo
	}

	select {
	case r.ch <- item{entry: entry}:
	default:
		r.dropped.Add(1)
	}
}

// Flush waits until entries recorded before the call are written
func (r *Recorder) Flush(ctx context.Context) error {
	marker, err := r.enqueueMarker(ctx)
	if err != nil || marker == nil {
		return err
	}

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Marker is nil when the recorder is closed: Close has written everything already
func (r *Recorder) enqueueMarker(ctx context.Context) (chan struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, nil
	}

	marker := make(chan struct{})
	select {
	case r.ch <- item{flush: marker}:
		return marker, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Errors reports sink failures. Failures are dropped when nobody reads.
func (r *Recorder) Errors() <-chan error {
	return r.errs
}

func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}

// Close writes buffered entries and stops the recorder
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.done)
		r.wg.Wait()
	})
}
