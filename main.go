package main

import (
	"context"
	"os"

	"feed-refresher/bootstrap"
	"feed-refresher/logger"
)

func main() {
	ctx := context.Background()

	if err := bootstrap.Run(ctx); err != nil {
		logger.Logger.Error("service failed", "error", err)
		os.Exit(1)
	}
}
