package main

import (
	"log/slog"
	"os"

	"github.com/phsym/console-slog"

	"github.com/timson/worlddb/storage"
	"github.com/timson/worlddb/world"
)

func getLogLevel(level string) slog.Level {
	switch level {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// createLogger builds the process logger and hands it to the library packages.
func createLogger(logLevel string) *slog.Logger {
	logger := slog.New(
		console.NewHandler(os.Stderr, &console.HandlerOptions{Level: getLogLevel(logLevel)}),
	)
	storage.SetLogger(logger)
	world.SetLogger(logger)
	return logger
}
