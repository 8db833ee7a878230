package middleware

import (
	"log/slog"
	"time"
)

// Logging returns a middleware that logs every command with its duration.
// Failed commands are logged at warning level.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(call *Call) error {
			start := time.Now()
			logger.Debug("command start", "command", call.Name, "args", call.Args)

			err := next.Handle(call)
			duration := time.Since(start)

			if err != nil {
				logger.Warn("command error",
					"command", call.Name,
					"duration", duration,
					"error", err,
				)
			} else {
				logger.Info("command done",
					"command", call.Name,
					"duration", duration,
				)
			}

			return err
		})
	}
}
