package gpustream

import "log/slog"

// Option configures an Engine during creation.
//
// Example:
//
//	e, err := gpustream.New[float32](cat, 1<<25, 0,
//	    gpustream.WithWorkgroupSize(256),
//	    gpustream.WithLogger(slog.Default()))
type Option func(*options)

// options holds optional configuration for Engine creation.
type options struct {
	workgroupSize uint32
	logger        *slog.Logger
}

func defaultOptions() options {
	return options{workgroupSize: DefaultWorkgroupSize}
}

// WithWorkgroupSize sets the number of lanes per work-group. The array
// size must be a multiple of it. Default is 64.
func WithWorkgroupSize(n uint32) Option {
	return func(o *options) {
		o.workgroupSize = n
	}
}

// WithLogger sets the logger of one engine. Without it the engine logs to
// the package logger configured with SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
