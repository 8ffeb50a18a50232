// vacancy-sync ingests trudvsem vacancies into the region, company and
// vacancy tables. See internal/cli for the commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ned0ra/diplom/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[vacancy-sync] %v\n", err)
		stop()
		os.Exit(1)
	}
}
