package main // entry point of the booking event consumer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sdoering/warp/internal/queue"
)

func main() {
	_ = godotenv.Load()
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	url := os.Getenv("WARP_AMQP_URL")
	if url == "" {
		log.Error("WARP_AMQP_URL is not set")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{URL: url, Dir: os.Getenv("WARP_BOOKING_LOG_DIR"), Log: log}
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("booking consumer stopped", "error", err)
		os.Exit(1)
	}
}
