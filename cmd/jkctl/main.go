// Command jkctl runs administrative tasks against the skill search
// service: one-off searches, listing or purging stored records, following
// the request-event stream, and load testing a running instance.
//
// Usage:
//
//	jkctl [--config configs/development.yaml] search "data engineer"
//	jkctl cache list|purge
//	jkctl requests list
//	jkctl feedback list
//	jkctl events tail [--from-start]
//	jkctl loadtest --url http://localhost:8000 --duration 30s
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
