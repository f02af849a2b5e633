package main

import (
	"context"
	"fmt"
	"time"

	"statsvault/internal/api"
	"statsvault/internal/config"
)

const serverProbeTimeout = 500 * time.Millisecond

// withClient runs fn against the configured server after checking that it
// answers /health.
func withClient(ctx context.Context, cfg *config.Config, fn func(*api.Client) error) error {
	client := api.NewClient(cfg.APIURL)

	probeCtx, cancel := context.WithTimeout(ctx, serverProbeTimeout)
	defer cancel()
	if err := client.Ping(probeCtx); err != nil {
		return fmt.Errorf("reach server at %s: %w", cfg.APIURL, err)
	}

	return fn(client)
}
