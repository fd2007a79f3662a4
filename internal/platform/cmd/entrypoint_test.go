package cmd

import (
	"context"
	"errors"
	"testing"
)

func TestRunWithTelemetryExecutesRun(t *testing.T) {
	t.Setenv("SWARMVERIFY_OTEL_ENDPOINT", "")

	ran := false
	err := RunWithTelemetry(context.Background(), "cexview", func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatal("expected run function to execute")
	}
}

func TestRunWithTelemetryPropagatesRunError(t *testing.T) {
	t.Setenv("SWARMVERIFY_OTEL_ENDPOINT", "")

	wantErr := errors.New("run failed")
	err := RunWithTelemetry(context.Background(), "cexview", func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected run error, got %v", err)
	}
}

func TestRunWithTelemetryRequiresService(t *testing.T) {
	err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for empty service name")
	}
}

func TestRunWithTelemetryRequiresRun(t *testing.T) {
	err := RunWithTelemetry(context.Background(), "cexview", nil)
	if err == nil {
		t.Fatal("expected error for nil run function")
	}
}
