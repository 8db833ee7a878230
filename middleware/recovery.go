package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recovery returns a middleware that turns a panic below it into an error,
// so a fault in a transport or parser fails one command instead of the
// program.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(call *Call) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("panic in transport",
						"command", call.Name,
						"panic", fmt.Sprintf("%v", r),
						"stack", string(debug.Stack()),
					)
					err = fmt.Errorf("middleware: panic in %s: %v", call.Name, r)
				}
			}()

			return next.Handle(call)
		})
	}
}
