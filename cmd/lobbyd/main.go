package main

import (
	"log/slog"
	"os"

	"github.com/cursor2b-collab/vip-sub000/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	lobbyServer, err := server.NewLobbyServer()
	if err != nil {
		slog.Error("Failed to create lobby gateway", "error", err)
		os.Exit(1)
	}

	// Start server (blocks until shutdown)
	if err := lobbyServer.Start(); err != nil {
		slog.Error("Failed to start lobby gateway", "error", err)
		os.Exit(1)
	}
}
