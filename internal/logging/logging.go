// Package logging constructs the structured loggers used by every binary
// in this repository.
package logging

import "go.uber.org/zap"

// New builds a production zap logger, or a development logger with
// human-readable console output when dev is true.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Fields builds the structured context carried on every log line that
// touches stream processing: stream, group, message id, attempt, and
// the backoff delay in milliseconds.
func Fields(stream, group, messageID string, attempt int, delayMs int64) []zap.Field {
	return []zap.Field{
		zap.String("stream", stream),
		zap.String("group", group),
		zap.String("message_id", messageID),
		zap.Int("attempt", attempt),
		zap.Int64("delay_ms", delayMs),
	}
}
