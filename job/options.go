package job

// Options configures per-handler dispatch defaults: the target queue and
// the retry policy. Registered defaults are merged with caller-supplied
// options at dispatch time; caller options win on a per-key basis.
type Options struct {
	// Queue is the queue name envelopes for this handler are published to.
	Queue string

	// Retry is the redelivery policy applied by the consumer runtime.
	Retry RetryPolicy
}

// DefaultOptions returns Options with sensible defaults: the "default"
// queue and retries enabled with the default attempt budget.
func DefaultOptions() Options {
	return Options{
		Queue: "default",
		Retry: RetryPolicy{Enabled: true},
	}
}

// Option is a functional option for dispatch defaults and per-call
// overrides.
type Option func(*Options)

// WithQueue sets the target queue.
func WithQueue(q string) Option {
	return func(o *Options) { o.Queue = q }
}

// WithMaxAttempts enables retries capped at n attempts.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.Retry = RetryPolicy{Enabled: true, MaxAttempts: n} }
}

// WithRetry enables or disables retries. Enabling without a cap uses
// DefaultMaxAttempts.
func WithRetry(enabled bool) Option {
	return func(o *Options) { o.Retry = RetryPolicy{Enabled: enabled} }
}
