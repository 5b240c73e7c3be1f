package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/absfs/sealzip/internal/commands"
	"github.com/absfs/sealzip/internal/logging"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	root := commands.NewRootCommand(version)
	err := root.ExecuteContext(ctx)
	stop()

	if err != nil {
		logging.Logger{}.Errorf("%v", err)
		os.Exit(1)
	}
}
