package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the process-wide logger. main overrides it via Init; the
// default keeps library code and tests from tripping on a nil logger.
var Logger *slog.Logger

func init() {
	if Logger == nil {
		Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{}))
	}
}

// Init configures the global JSON logger from LOG_LEVEL and SERVICE_NAME
// and returns it.
func Init() *slog.Logger {
	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		serviceName = "feed-refresher"
	}

	Logger = New(os.Stdout, serviceName, os.Getenv("LOG_LEVEL"))

	return Logger
}

// New builds a JSON slog.Logger with the given level and pre-bound
// service attribute.
func New(output io.Writer, serviceName, level string) *slog.Logger {
	var slogLevel slog.Level

	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Lowercase level values for the log forwarder.
			if a.Key == slog.LevelKey {
				if lv, ok := a.Value.Any().(slog.Level); ok {
					return slog.Attr{Key: slog.LevelKey, Value: slog.StringValue(strings.ToLower(lv.String()))}
				}
			}
			return a
		},
	})

	return slog.New(handler).With("service", serviceName)
}
