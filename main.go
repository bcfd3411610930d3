package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/cmd/mcpserver"
	"github.com/chirino/messaging-service/internal/cmd/migrate"
	"github.com/chirino/messaging-service/internal/cmd/serve"
	"github.com/chirino/messaging-service/internal/cmd/users"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// A .env file in the working directory seeds MESSAGING_SERVICE_* variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Failed to load .env", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "messaging-service",
		Usage: "Conversation and message service with participant-based access control",
		Commands: []*cli.Command{
			serve.Command(),
			migrate.Command(),
			users.Command(),
			mcpserver.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
