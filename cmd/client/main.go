package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/stagepass/internal/client/cli"
	"github.com/dmitrijs2005/stagepass/internal/client/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer app.Close()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		stop()
		app.Close()
		os.Exit(1)
	}

}
