package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger installs the process-wide logger. Release mode gets the JSON
// production encoder, anything else the console development encoder. An
// empty level keeps the encoder's default.
func InitLogger(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == "release" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}

// LogError logs an error with context
func LogError(message string, err error, fields ...zap.Field) {
	if err != nil {
		zap.L().Error(message, append(fields, zap.Error(err))...)
	}
}

// LogInfo logs an informational message
func LogInfo(message string, fields ...zap.Field) {
	zap.L().Info(message, fields...)
}

// LogWarning logs a warning message
func LogWarning(message string, fields ...zap.Field) {
	zap.L().Warn(message, fields...)
}
