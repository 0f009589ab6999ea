package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"adagency-backoffice/pkg/config"
	"adagency-backoffice/pkg/db"
	"adagency-backoffice/pkg/gen"
	"adagency-backoffice/pkg/logger"
	"adagency-backoffice/services/bootstrap"
	"adagency-backoffice/services/plan"
	"adagency-backoffice/services/reconciliation"
)

type options struct {
	file   string
	dryRun bool
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "Required: plan catalog (.xlsx or .csv)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Parse and validate the catalog without writing")
	flag.Parse()

	if opts.file == "" {
		flag.Usage()
		os.Exit(2)
	}

	if opts.dryRun {
		if err := dryRun(opts.file); err != nil {
			log.Fatal(err)
		}
		return
	}

	app := fx.New(
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		bootstrap.Module,
		plan.Module,
		reconciliation.PlanGuard,
		fx.Supply(opts),
		fx.Invoke(runImport),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	)

	if err := app.Err(); err != nil {
		log.Fatalf("fx init failed: %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("import failed: %v", err)
	}
	_ = app.Stop(context.Background())
}

func runImport(lc fx.Lifecycle, svc *plan.Service, opts options) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			f, err := os.Open(opts.file)
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := svc.Import(ctx, filepath.Base(opts.file), f)
			if err != nil {
				zap.L().Error("catalog import failed", zap.String("file", opts.file), zap.Error(err))
				return err
			}
			return printJSON(result)
		},
	})
}

func dryRun(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, failures, err := plan.ParseCatalog(filepath.Base(path), f)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"rows":   len(rows),
		"failed": failures,
	})
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
