package logger

import "go.uber.org/zap"

// New builds the process-wide logger. Debug switches to the human
// readable development encoder.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
