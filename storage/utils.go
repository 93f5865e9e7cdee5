package storage

import (
	"log/slog"
	"os"

	"github.com/phsym/console-slog"
)

const (
	UInt8Size  = 1
	UInt16Size = 2
	UInt32Size = 4
	UInt64Size = 8
)

var logger = slog.New(
	console.NewHandler(os.Stderr, &console.HandlerOptions{Level: slog.LevelWarn}),
)

func SetLogger(l *slog.Logger) {
	logger = l
}
