package collector

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"team-ingest/internal/logging"
)

// WithSignals returns a child of parent that is cancelled on the first SIGINT or
// SIGTERM. In-flight requests observe the cancellation and the run stops between
// matches. A second signal exits the process. Call stop to release the handler.
func WithSignals(parent context.Context, logger *logging.Logger) (ctx context.Context, stop func()) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, stopping after the current request", "signal", sig.String())
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			logger.Error("received second signal, forcing exit", "signal", sig.String())
			os.Exit(1)
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}
