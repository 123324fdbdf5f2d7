package logger

import (
	"os"

	"go.uber.org/zap"
)

type Logger interface {
	Info(msg string, values ...any)
	Warn(msg string, values ...any)
	Error(msg string, values ...any)
	Debug(msg string, values ...any)
	Panic(message string, values ...any)
	Fatal(error error, values ...any)
	Printf(format string, args ...interface{})
}

var baseConfig zap.Config

func init() {
	if os.Getenv("LOG_ENV") == "production" {
		baseConfig = zap.NewProductionConfig()
	} else {
		baseConfig = zap.NewDevelopmentConfig()
	}

	_, err := NewLogger(baseConfig)
	if err != nil {
		panic(err)
	}
}

// UseFile keeps the console output and additionally writes JSON lines to a
// rotating file.
func UseFile(opts FileOptions) error {
	if opts.Path == "" {
		return nil
	}
	_, err := NewFileLogger(baseConfig, opts)
	return err
}

func Info(msg string, values ...any) {
	GetLogger().Info(msg, values...)
}

func Warn(msg string, values ...any) {
	GetLogger().Warn(msg, values...)
}

func Error(msg string, values ...any) {
	GetLogger().Error(msg, values...)
}

func Debug(msg string, values ...any) {
	GetLogger().Debug(msg, values...)
}

func Panic(msg string, values ...any) {
	GetLogger().Panic(msg, values...)
}

func Fatal(error error, values ...any) {
	GetLogger().Fatal(error, values...)
}

func Sync() {
	_ = GetLogger().log.Sync()
}
