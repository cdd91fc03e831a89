package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/ternarybob/respondeo/internal/app"
	"github.com/ternarybob/respondeo/internal/common"
)

// runChat starts scheduled re-ingestion, runs one catch-up ingestion pass in
// the background, then serves an interactive question/answer loop on stdin
func runChat(application *app.App) {
	if err := application.Scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start scheduled re-ingestion")
	}

	// Catch up on documents changed while the process was down
	common.SafeGo(logger, "startupIngestion", func() {
		result, err := application.IngestService.ProcessDirectory(context.Background(), config.Documents.Dir, *forceReprocess)
		if err != nil {
			logger.Error().Err(err).Msg("Startup ingestion failed")
			return
		}
		logger.Info().
			Int("processed", result.Processed).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Msg("Startup ingestion completed")
	})

	device := *deviceID
	if device == "" {
		device = "cli-" + uuid.NewString()[:8]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Ask a question. Ctrl+D or Ctrl+C to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}

		result, err := application.ChatService.Ask(ctx, device, query, nil)
		if err != nil {
			logger.Error().Err(err).Msg("Turn failed")
			continue
		}

		fmt.Println()
		fmt.Println(result.Content)
		if len(result.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, src := range result.Sources {
				fmt.Printf("  - %s (%s)\n", src.Title, src.SourceFile)
			}
		}
		fmt.Println()

		if ctx.Err() != nil {
			break
		}
	}

	logger.Info().Msg("Chat session ended")
}
