package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/respondeo/internal/app"
)

// runStatus prints application state, index counters, and provider health
func runStatus(application *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	status := application.StatusService.GetStatus()
	status["index_count"] = application.Index.Count()
	status["index_trained"] = application.Index.Trained()

	if count, err := application.Storage.ChunkStorage().CountChunks(); err == nil {
		status["chunk_count"] = count
	}

	health := application.StatusService.LLMHealth(ctx)
	status["llm_healthy"] = health.Healthy
	if health.Detail != "" {
		status["llm_detail"] = health.Detail
	}

	payload, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode status")
		return
	}
	fmt.Println(string(payload))
}
