package db

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// RecorderOptions tune the journal writer. Zero values select the defaults.
type RecorderOptions struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

func (o RecorderOptions) withDefaults() RecorderOptions {
	if o.Buffer <= 0 {
		o.Buffer = 4096
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 256
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	return o
}

// Recorder journals outbound messages in the background. Publish never
// blocks: when the buffer is full the event is dropped.
type Recorder struct {
	coll  EventCollection
	runID string
	opts  RecorderOptions
	now   func() time.Time

	mu      sync.RWMutex
	closed  bool
	events  chan models.Event
	done    chan struct{}
	dropped atomic.Int64
	written atomic.Int64
}

// NewRecorder starts the writer goroutine. Call Close to flush and stop it.
func NewRecorder(coll EventCollection, runID string, opts RecorderOptions) *Recorder {
	opts = opts.withDefaults()
	r := &Recorder{
		coll:   coll,
		runID:  runID,
		opts:   opts,
		now:    time.Now,
		events: make(chan models.Event, opts.Buffer),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r
}

// RunID identifies the simulation run every event is stamped with.
func (r *Recorder) RunID() string { return r.runID }

// Publish queues one event. Events published after Close are discarded.
func (r *Recorder) Publish(topic string, payload any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil
	}
	e := models.Event{RunID: r.runID, Topic: topic, Payload: payload, RecordedAt: r.now()}
	select {
	case r.events <- e:
	default:
		if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
			log.WithFields(log.Fields{"topic": topic, "dropped": n}).Warn("Journal buffer full, dropping events")
		}
	}
	return nil
}

// Dropped returns how many events were discarded because the buffer was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Written returns how many events were stored.
func (r *Recorder) Written() int64 { return r.written.Load() }

// Close stops accepting events, writes what is buffered and waits for the
// writer to finish or ctx to expire.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]models.Event, 0, r.opts.BatchSize)
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				r.flush(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= r.opts.BatchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (r *Recorder) flush(batch []models.Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
	defer cancel()
	events := append([]models.Event(nil), batch...)
	if err := r.coll.InsertEvents(ctx, events); err != nil {
		log.WithError(err).WithField("events", len(events)).Warn("Failed to write journal batch")
		return
	}
	r.written.Add(int64(len(events)))
}
