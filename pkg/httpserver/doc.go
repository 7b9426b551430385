// Package httpserver runs billingd's HTTP listener with graceful shutdown
// and serves the liveness and readiness probes.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//	    log.Error("server stopped", logger.Error(err))
//	}
//
// Run blocks until ctx is canceled, SIGINT or SIGTERM arrives, or the
// listener fails. In-flight requests get ShutdownTimeout to finish.
package httpserver
