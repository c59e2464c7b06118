package main

import (
	"os"

	"image-server/internal/app/worker"
	"image-server/internal/config"

	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.Init()

	cfg, err := config.MustLoad()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to load config")
	}

	if !cfg.Kafka.Enabled {
		zlog.Logger.Fatal().Msg("Thumbnail worker needs kafka.enabled=true")
	}

	thumbnailWorker, err := worker.NewWorker(cfg, &zlog.Logger)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to create worker")
	}

	if err := thumbnailWorker.Run(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Worker failed")
	}

	os.Exit(0)
}
