// Package logger wires a zap logger with a rotating file sink and a stdout
// sink.  Components use the package-level helpers so they never carry a
// logger dependency explicitly; main replaces the default via Init.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = zap.NewNop()

// Init builds the application logger.  In "prod" the encoder is JSON and
// the level defaults to info; otherwise a console encoder with debug level
// is used.  Logs are teed to stdout and to a size-rotated file under dir.
// The built logger becomes the package default.
func Init(env, dir string) (*zap.Logger, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	level := zap.InfoLevel
	if env == "prod" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
		level = zap.DebugLevel
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		var parsed zapcore.Level
		if err := parsed.UnmarshalText([]byte(lvl)); err == nil {
			level = parsed
		}
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   dir + "/server.log",
		MaxSize:    10, // MB
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	})

	core := zapcore.NewTee(
		zapcore.NewCore(enc, fileWriter, level),
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level),
	)

	l := zap.New(core, zap.AddCaller())
	log = l
	return l, nil
}

// Get returns the current package logger.
func Get() *zap.Logger { return log }

// Set replaces the package logger; tests use this to inject observers.
func Set(l *zap.Logger) { log = l }

func Debug(msg string, fields ...zap.Field) { log.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { log.Error(msg, fields...) }

// Sync flushes buffered log entries; called on shutdown.
func Sync() error { return log.Sync() }
