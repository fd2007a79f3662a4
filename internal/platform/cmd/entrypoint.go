// Package cmd holds shared entrypoint behavior for the command binaries.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/swarmverify/witness/internal/platform/otel"
)

const defaultOTelShutdownTimeout = 5 * time.Second

// RunWithTelemetry configures tracing for the named service, executes run,
// and flushes pending spans before returning. Telemetry shutdown failures are
// logged, not returned: the run result is what the caller cares about.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultOTelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	return run(ctx)
}
