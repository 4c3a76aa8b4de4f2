// Package logging builds the process logger. Ecto log messages are
// drained into a zap core so output matches the platform's JSON logs.
package logging

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the service logger and a flush func for shutdown.
func New(appName, level string, pretty bool) (ectologger.Logger, func() error) {
	var zcfg zap.Config
	if pretty {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if lvl, err := zapcore.ParseLevel(strings.ToLower(level)); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	zl, err := zcfg.Build(zap.Fields(zap.String("app", appName)))
	if err != nil {
		zl = zap.NewNop()
	}

	logger := ectologger.NewEctoLogger(func(m ectologger.EctoLogMessage) {
		fields := make([]zap.Field, 0, len(m.Fields)+1)
		for k, v := range m.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		if m.Err != nil {
			fields = append(fields, zap.Error(m.Err))
		}

		switch strings.ToLower(fmt.Sprint(m.Level)) {
		case "debug":
			zl.Debug(m.Message, fields...)
		case "warn", "warning":
			zl.Warn(m.Message, fields...)
		case "error", "fatal":
			zl.Error(m.Message, fields...)
		default:
			zl.Info(m.Message, fields...)
		}
	})

	return logger, zl.Sync
}
