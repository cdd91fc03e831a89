package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/respondeo/internal/app"
)

// runIngest processes the documents directory once and exits
func runIngest(application *app.App) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := application.IngestService.ProcessDirectory(ctx, config.Documents.Dir, *forceReprocess)
	if err != nil {
		logger.Error().Err(err).Msg("Ingestion failed")
		application.Close()
		os.Exit(1)
	}

	fmt.Printf("Processed %d, skipped %d, failed %d in %s\n",
		result.Processed, result.Skipped, result.Failed, result.Duration.Round(10*time.Millisecond))

	for _, file := range result.Files {
		if file.Err != "" {
			fmt.Printf("  FAILED %s: %s\n", file.FileName, file.Err)
		}
	}

	if result.Failed > 0 {
		application.Close()
		os.Exit(1)
	}
}
