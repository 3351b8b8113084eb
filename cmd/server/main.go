// Command server runs the local voxnote HTTP API: a read/delete view over
// the note collection plus pipeline status.
package main

import (
	"log"

	"github.com/calegray/voxnote/internal/config"
	"github.com/calegray/voxnote/internal/logger"
	"github.com/calegray/voxnote/internal/notes"
	"github.com/calegray/voxnote/internal/server"
	"github.com/calegray/voxnote/internal/workdir"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	slogger := logger.SetupLogger(cfg)

	// Log startup information
	slogger.Info("Starting voxnote server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Open the note collection under the data directory
	root, err := workdir.Root(cfg.DataDir)
	if err != nil {
		slogger.Error("Failed to resolve data directory", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
	if err := workdir.Prep(root); err != nil {
		slogger.Error("Failed to prepare data directory", "root", root, "error", err)
		log.Fatalf("Fatal: %v", err)
	}

	repo, err := notes.NewRepository(workdir.NotesFile(root), notes.DefaultPageSize)
	if err != nil {
		slogger.Error("Failed to open note collection", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slogger.Error("Note collection flush failed", "error", err)
		}
	}()

	// No pipeline runs in this process; the status endpoint reads as idle.
	srv := server.New(cfg, slogger, repo, nil)

	// Start server
	if err := server.Run(srv); err != nil {
		slogger.Error("Failed to start server", "error", err)
		log.Fatalf("Fatal: %v", err)
	}
}
