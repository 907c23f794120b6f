// Package logging builds the process logger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kasuganosora/mathmon/server/config"
)

// New returns a development logger in debug mode, otherwise a JSON
// production logger. A configured log file is tee'd through a rotating
// writer.
func New(debug bool, lc config.LogConfig) (*zap.Logger, error) {
	if debug && lc.File == "" {
		return zap.NewDevelopment()
	}

	var encCfg zapcore.EncoderConfig
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
		level.SetLevel(zap.DebugLevel)
	} else {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(debug, encCfg), zapcore.Lock(os.Stderr), level),
	}
	if lc.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(Rotator(lc)),
			level,
		))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func encoder(debug bool, cfg zapcore.EncoderConfig) zapcore.Encoder {
	if debug {
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}

// Rotator returns the rotating file writer for lc.
func Rotator(lc config.LogConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   true,
	}
}
