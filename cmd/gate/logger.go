package main

import (
	"os"
	"strings"

	"github.com/goliatone/go-auth-gate"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newZapLogger writes JSON lines to out, or uses the development config
// when dev is set.
func newZapLogger(level string, dev bool, out zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl := levelFromString(level)
	if dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), out, lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(core, opts...), nil
}

// env is the configuration and logging shared by every command.
type env struct {
	cfg    auth.Config
	zap    *zap.Logger
	logger auth.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := auth.LoadConfig(envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	zl, err := newZapLogger(cfg.LogLevel, cfg.LogDev, zapcore.AddSync(os.Stderr))
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:    cfg,
		zap:    zl,
		logger: auth.NewZapLogger(zl),
	}, nil
}

func (e *env) sync() {
	_ = e.zap.Sync()
}
