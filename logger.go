package tcc

import (
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging installs the coordinator's default logger. The level comes
// from TCC_LOG_LEVEL (debug, info, warn, error; case-insensitive; default
// info) and the encoding from TCC_LOG_FORMAT ("json" for machine-shipped
// logs, anything else for text).
//
// Applications call this at startup if they want the coordinator's defaults;
// embedding applications that own slog.SetDefault just skip it.
func ConfigureLogging() {
	logLevel.Set(parseLogLevel(os.Getenv("TCC_LOG_LEVEL")))

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}
	var handler slog.Handler
	if strings.EqualFold(os.Getenv("TCC_LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel adjusts the level of the logger installed by ConfigureLogging at runtime.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

func parseLogLevel(lvl string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(lvl)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}
