package delayqueue

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"delayq/config"
)

const (
	DefaultDelay         = 30 * time.Second
	DefaultBatchSize     = 50
	DefaultGrace         = 360 * time.Second
	DefaultPoolExtension = 30 * time.Minute
	DefaultRetryDelay    = 30 * time.Second
	DefaultKeyPrefix     = "queue_delay"
)

// Options configures a DelayQueue.
type Options struct {
	// Delay is used by Push and PushID.
	Delay time.Duration
	// BatchSize is used by Pop.
	BatchSize int
	// Grace is added to the delay to form the message TTL. It must exceed the
	// polling interval so a due body is still present when it is polled.
	Grace time.Duration
	// PoolExtension is added on top of the TTL when writing the body, to absorb
	// poll latency.
	PoolExtension time.Duration
	// RetryDelay is how far a message is pushed back when its body cannot be
	// fetched.
	RetryDelay time.Duration
	// KeyPrefix namespaces every key.
	KeyPrefix string

	Clock       func() time.Time
	IDGenerator func() string
	Logger      logrus.FieldLogger
	Observer    Observer
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Delay:         DefaultDelay,
		BatchSize:     DefaultBatchSize,
		Grace:         DefaultGrace,
		PoolExtension: DefaultPoolExtension,
		RetryDelay:    DefaultRetryDelay,
		KeyPrefix:     DefaultKeyPrefix,
		Clock:         time.Now,
		IDGenerator:   uuid.NewString,
		Logger:        logrus.StandardLogger(),
		Observer:      nopObserver{},
	}
}

func WithDelay(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.Delay = d
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

func WithGrace(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.Grace = d
		}
	}
}

func WithPoolExtension(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.PoolExtension = d
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.RetryDelay = d
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		if prefix != "" {
			o.KeyPrefix = prefix
		}
	}
}

// WithClock overrides the time source. Scores and TTLs are derived from it.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Clock = now
		}
	}
}

// WithIDGenerator overrides how ids are made for Push.
func WithIDGenerator(gen func() string) Option {
	return func(o *Options) {
		if gen != nil {
			o.IDGenerator = gen
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

// WithObserver adds an observer. It may be given more than once.
func WithObserver(obs Observer) Option {
	return func(o *Options) {
		if obs == nil {
			return
		}
		switch cur := o.Observer.(type) {
		case nopObserver:
			o.Observer = obs
		case multiObserver:
			o.Observer = append(cur, obs)
		default:
			o.Observer = multiObserver{cur, obs}
		}
	}
}

// FromConfig maps the queue section of the config file onto options.
func FromConfig(cfg config.QueueConfig) []Option {
	return []Option{
		WithDelay(time.Duration(cfg.DelaySeconds) * time.Second),
		WithBatchSize(cfg.BatchSize),
		WithGrace(time.Duration(cfg.GraceSeconds) * time.Second),
		WithPoolExtension(time.Duration(cfg.PoolExtensionSeconds) * time.Second),
		WithRetryDelay(time.Duration(cfg.RetryDelaySeconds) * time.Second),
		WithKeyPrefix(cfg.KeyPrefix),
	}
}
