package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/insiderwatch/insiderwatch/cmd/insiderctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, cli.Options{}, os.Args[1:])
	stop()
	os.Exit(code)
}
