// internal/logger/logger.go
//
// Structured JSON logger (Zap + Lumberjack).
//
// Context
// -------
// statsd writes job outcomes, aggregation failures, and lifecycle events
// to `<root>/logs/statsd.log`, rotated by Lumberjack.  When tee is set
// (interactive runs, containers that scrape stdout) the same events are
// also written to stdout with the console encoder.
//
// Usage
// -----
//
//	log, err := logger.New(cfg.Paths.Root, cfg.Log.Tee, cfg.Log.Level)
//	if err != nil { … }
//	log.Infow("job finished", "job", name, "run_id", id)
//
// Notes
// -----
// • Keys are lower_snake: hotel_id, job, run_id, err.
// • ISO-8601 timestamps, lowercase levels.
// • Oxford commas, two spaces after periods.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the active log file under <root>/logs.
const FileName = "statsd.log"

// New returns a *zap.SugaredLogger writing JSON at level and above.  An
// empty level means info.  The logger is installed as the process-wide
// default via zap.ReplaceGlobals.
func New(rootDir string, tee bool, level string) (*zap.SugaredLogger, error) {
	lvl := zap.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("logger: level %q: %w", level, err)
		}
	}

	logDir := filepath.Join(rootDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     14, // days
		Compress:   true,
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:      "ts",
		LevelKey:     "level",
		NameKey:      "logger",
		MessageKey:   "msg",
		CallerKey:    "caller",
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeLevel:  zapcore.LowercaseLevelEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(sink), lvl),
	}
	if tee {
		cores = append(cores,
			zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), lvl))
	}

	z := zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.AddSync(sink)),
	).Sugar()
	zap.ReplaceGlobals(z.Desugar())

	z.Infow("logger online", "tee", tee, "level", lvl.String())
	return z, nil
}

// Named returns a child of l tagged with component, the way each package
// receives its logger from main.
func Named(l *zap.SugaredLogger, component string) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l.Named(component)
}
