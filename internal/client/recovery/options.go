package recovery

import "time"

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// Options tune one recovery cycle. Callbacks are optional.
type Options struct {
	AutoRetry        bool
	MaxRetries       int
	RetryDelay       time.Duration
	PreserveFormData bool

	OnStart             func()
	OnSuccess           func()
	OnFailed            func(error)
	OnMaxRetriesReached func()
}

// Option overrides a field for a single Start call.
type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		AutoRetry:        true,
		MaxRetries:       DefaultMaxRetries,
		RetryDelay:       DefaultRetryDelay,
		PreserveFormData: true,
	}
}

func WithMaxRetries(n int) Option {
	return func(o *Options) { o.MaxRetries = n }
}

func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

func WithAutoRetry(v bool) Option {
	return func(o *Options) { o.AutoRetry = v }
}

func WithPreserveFormData(v bool) Option {
	return func(o *Options) { o.PreserveFormData = v }
}

func (o Options) with(opts []Option) Options {
	for _, fn := range opts {
		fn(&o)
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// Presets.

func tokenExpiryPreset() []Option {
	return []Option{WithAutoRetry(true), WithMaxRetries(2), WithPreserveFormData(true)}
}

func networkErrorPreset() []Option {
	return []Option{WithAutoRetry(true), WithMaxRetries(5), WithRetryDelay(3 * time.Second), WithPreserveFormData(true)}
}
