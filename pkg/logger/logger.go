package logger

import (
	"strings"

	"adagency-backoffice/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("zap",
	fx.Provide(
		New,
	),
)

type ConfigParams struct {
	fx.In
	Cfg *config.Config `optional:"true"`
}

// New builds the process logger and installs it as zap's global, which services log through.
func New(p ConfigParams) *zap.Logger {
	var zcfg zap.Config
	if p.Cfg != nil && p.Cfg.AppEnv == "production" {
		zcfg = productionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if p.Cfg != nil {
		if lvl, ok := parseLevel(p.Cfg.LogLevel); ok {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	log, err := zcfg.Build()
	if err != nil {
		panic(err)
	}

	if p.Cfg != nil {
		log = log.With(
			zap.String("env", p.Cfg.AppEnv),
			zap.String("service_name", p.Cfg.AppName),
			zap.String("version", p.Cfg.AppVersion),
		)
	}

	zap.ReplaceGlobals(log)

	return log
}

func productionConfig() zap.Config {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.StacktraceKey = "stacktrace"
	config.EncoderConfig.LevelKey = "severity"
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.Encoding = "json"
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config
}

// parseLevel reads LOG_LEVEL; an empty or unknown value keeps the environment default.
func parseLevel(raw string) (zapcore.Level, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zapcore.InfoLevel, false
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zapcore.InfoLevel, false
	}
	return lvl, true
}
