// Package monitoring holds the process-wide diagnostic logger and the
// Prometheus metrics of the presence services.
package monitoring

import (
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger or UseZap. Tests can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewLogger builds a zap logger. Development mode logs human readable
// console lines at debug level; otherwise the production JSON encoder is
// used. Extra output paths (files) are appended to stderr.
func NewLogger(development bool, outputs ...string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = append([]string{"stderr"}, outputs...)
	return cfg.Build()
}

// UseZap routes Logf through the given zap logger.
func UseZap(l *zap.Logger) {
	if l == nil {
		SetLogger(nil)
		return
	}
	sugar := l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	SetLogger(sugar.Infof)
}
