package main

import (
	"log"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"adagency-backoffice/pkg/accesscontrol"
	"adagency-backoffice/pkg/config"
	"adagency-backoffice/pkg/db"
	"adagency-backoffice/pkg/gen"
	"adagency-backoffice/pkg/health"
	"adagency-backoffice/pkg/httpapi"
	"adagency-backoffice/pkg/logger"
	"adagency-backoffice/pkg/otelcol"
	"adagency-backoffice/pkg/profiling"
	"adagency-backoffice/pkg/redis"
	"adagency-backoffice/pkg/secretmanager"
	"adagency-backoffice/pkg/sequence"
	"adagency-backoffice/pkg/server"
	"adagency-backoffice/services/bootstrap"
	"adagency-backoffice/services/campaign"
	"adagency-backoffice/services/ledger"
	"adagency-backoffice/services/plan"
	"adagency-backoffice/services/reconciliation"
)

func main() {
	opts := []fx.Option{
		configModule(),
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		gen.Module,
		health.Module,
		accesscontrol.Module,
		httpapi.Module,
		bootstrap.Module,
		plan.Module,
		plan.HTTP,
		campaign.Module,
		ledger.Module,
		ledger.HTTP,
		reconciliation.Module,
		reconciliation.HTTP,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

// configModule reads config from consul when REMOTE_CONFIG_PROVIDER is set and overlays Vault secrets when
// VAULT_ADDR is set.
func configModule() fx.Option {
	var opts []fx.Option
	if secretmanager.Enabled() {
		opts = append(opts, secretmanager.Module)
	}
	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		opts = append(opts, config.RemoteModule)
	} else {
		opts = append(opts, config.Module)
	}
	return fx.Options(opts...)
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger}
})
