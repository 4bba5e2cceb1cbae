// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the console flavor and the durable log file.
type Config struct {
	// Development switches the console stream to the human-readable encoder.
	Development bool
	// File, when set, duplicates every entry into a JSON log file so the
	// per-item outcome record survives the terminal session.
	File string
}

// New builds a zap.Logger that tees the console stream and, when configured,
// a durable JSON log file.
func New(cfg Config) (*zap.Logger, func(), error) {
	consoleCfg := zap.NewProductionConfig()
	if cfg.Development {
		consoleCfg = zap.NewDevelopmentConfig()
		consoleCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	consoleCfg.EncoderConfig.TimeKey = "ts"

	consoleLogger, err := consoleCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build console logger: %w", err)
	}
	if cfg.File == "" {
		return consoleLogger, func() { _ = consoleLogger.Sync() }, nil
	}

	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.TimeKey = "ts"
	sink, closeSink, err := zap.Open(cfg.File)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderCfg), sink, zapcore.InfoLevel)

	logger := consoleLogger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
	cleanup := func() {
		_ = logger.Sync()
		closeSink()
	}
	return logger, cleanup, nil
}
