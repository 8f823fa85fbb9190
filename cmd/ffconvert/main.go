// Command ffconvert converts the redeemer export, the OLSR dump and the
// spider snapshot of the Funkfeuer mesh into the node database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ffconvert/internal/persons"
	"ffconvert/internal/reconcile"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ffconvert:", err)
		if errors.Is(err, reconcile.ErrInvariant) || errors.Is(err, persons.ErrInvariant) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
