package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup ставит JSON логгер в stdout логгером по умолчанию
func Setup(debug bool) {
	slog.SetDefault(New(os.Stdout, debug))
}

func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	return slog.New(
		slog.NewJSONHandler(
			w,
			&slog.HandlerOptions{Level: level},
		),
	)
}
