package setup

import "log/slog"

var packageLogger *slog.Logger

// SetLogger configures the package logger used for setup operations. A nil
// logger resets to the process default.
func SetLogger(logger *slog.Logger) {
	packageLogger = logger
}

func getLogger() *slog.Logger {
	if packageLogger == nil {
		return slog.Default().With("component", "setup")
	}
	return packageLogger
}
