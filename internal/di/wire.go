// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/aristath/screener/internal/config"
	"github.com/rs/zerolog"
)

// Wire initializes all dependencies and returns a fully configured container
// This is the main entry point for dependency injection
// Order of operations:
// 1. Open the cache database
// 2. Initialize repositories
// 3. Initialize sources and the resolver
// 4. Initialize services
// 5. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	// Step 1: Open the cache database (optional)
	container := InitializeDatabases(cfg, log)

	// Step 2: Initialize repositories
	InitializeRepositories(container, log)

	// Step 3: Initialize sources
	InitializeSources(container, cfg, log)

	// Step 4: Initialize services
	InitializeServices(container, cfg, log)

	// Step 5: Register jobs
	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		container.Close()
		return nil, nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
