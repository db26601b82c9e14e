package logger

import (
	"os"

	"github.com/devsketch/apiserver/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelFromString parses a zap level name, falling back to info.
func levelFromString(l string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(l)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Init builds the process logger. Development mode uses zap's console
// encoder; otherwise JSON lines go to stdout.
func Init(cfg config.LogConfig) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...), nil
}
