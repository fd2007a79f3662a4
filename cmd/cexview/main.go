// Package main provides the counterexample viewer CLI.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	cexviewcmd "github.com/swarmverify/witness/internal/cmd/cexview"
	platformcmd "github.com/swarmverify/witness/internal/platform/cmd"
)

func main() {
	cfg, err := cexviewcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CEXVIEW] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, "cexview", func(ctx context.Context) error {
		return cexviewcmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	if err != nil {
		log.Fatalf("cexview: %v", err)
	}
}
