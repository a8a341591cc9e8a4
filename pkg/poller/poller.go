// Package poller drives a delay queue from the consumer side: it polls on an
// interval and hands every due body to a handler.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"delayq/config"
)

// Handler processes one body. Delivery is at-least-once, so handlers must be
// idempotent. A returned error is logged; the body is not redelivered.
type Handler func(ctx context.Context, body []byte) error

// Popper is the consumer half of a delay queue.
type Popper interface {
	Topic() string
	PopN(ctx context.Context, batchSize int) ([][]byte, error)
}

// batchSizer is implemented by poppers that know their own default batch.
type batchSizer interface {
	BatchSize() int
}

// Options configures a Poller.
type Options struct {
	Interval  time.Duration
	Workers   int
	BatchSize int
	Logger    logrus.FieldLogger
}

type Option func(*Options)

func WithInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Interval = d
		}
	}
}

// WithWorkers runs n independent poll loops against the same topic.
func WithWorkers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Workers = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.BatchSize = n
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// FromConfig maps the poller config section onto options.
func FromConfig(cfg config.PollerConfig) []Option {
	return []Option{
		WithInterval(time.Duration(cfg.IntervalMs) * time.Millisecond),
		WithWorkers(cfg.Workers),
	}
}

// Poller repeatedly pops from one topic.
type Poller struct {
	q    Popper
	h    Handler
	opts Options
	name string
	log  logrus.FieldLogger
}

// New returns a Poller. Defaults: 1s interval, one worker, queue batch size.
func New(q Popper, h Handler, opts ...Option) *Poller {
	o := Options{
		Interval: time.Second,
		Workers:  1,
		Logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	name := "poller-" + xid.New().String()
	return &Poller{
		q:    q,
		h:    h,
		opts: o,
		name: name,
		log:  o.Logger.WithFields(logrus.Fields{"topic": q.Topic(), "poller": name}),
	}
}

// Name identifies this poller in logs.
func (p *Poller) Name() string { return p.name }

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Workers; i++ {
		worker := i
		g.Go(func() error {
			p.loop(ctx, worker)
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) loop(ctx context.Context, worker int) {
	log := p.log.WithField("worker", worker)
	log.Debug("poller started")
	defer log.Debug("poller stopped")

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		// drain while batches come back full
		for p.Poll(ctx, log) {
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll runs one pop and dispatches its bodies. It reports whether the batch
// was full, meaning more may be due right now.
func (p *Poller) Poll(ctx context.Context, log logrus.FieldLogger) bool {
	if ctx.Err() != nil {
		return false
	}
	if log == nil {
		log = p.log
	}

	bodies, err := p.q.PopN(ctx, p.opts.BatchSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("poll failed")
		}
		return false
	}

	for _, body := range bodies {
		if err := p.h(ctx, body); err != nil {
			log.WithError(err).Warn("handler failed")
		}
	}
	if limit := p.batchLimit(); limit > 0 {
		return len(bodies) >= limit
	}
	// unknown server-side batch: keep draining until a poll comes back empty
	return len(bodies) > 0
}

// batchLimit is the batch size a full pop returns, or 0 when it is not known.
func (p *Poller) batchLimit() int {
	if p.opts.BatchSize > 0 {
		return p.opts.BatchSize
	}
	if bs, ok := p.q.(batchSizer); ok {
		return bs.BatchSize()
	}
	return 0
}
