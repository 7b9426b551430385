package httpserver

import (
	"log/slog"
	"time"
)

// Option configures the server.
type Option func(*options)

type options struct {
	addr              string
	readTimeout       time.Duration
	readHeaderTimeout time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
}

// WithAddr sets the listen address. Empty values are ignored.
func WithAddr(addr string) Option {
	return func(o *options) {
		if addr != "" {
			o.addr = addr
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *options) { setPositive(&o.readTimeout, d) }
}

func WithReadHeaderTimeout(d time.Duration) Option {
	return func(o *options) { setPositive(&o.readHeaderTimeout, d) }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { setPositive(&o.writeTimeout, d) }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) { setPositive(&o.idleTimeout, d) }
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { setPositive(&o.shutdownTimeout, d) }
}

// WithLogger sets the logger for lifecycle messages. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func setPositive(dst *time.Duration, d time.Duration) {
	if d > 0 {
		*dst = d
	}
}
