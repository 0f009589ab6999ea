package otelcol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"adagency-backoffice/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

const dialTimeout = 10 * time.Second

// NewExporter builds an OTLP span exporter for OTEL.PROTOCOL ("http" or "grpc").
func NewExporter(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(cfg.Otel.Protocol)) {
	case "grpc":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithCompressor("gzip"),
			otlptracegrpc.WithEndpoint(cfg.Otel.Addr),
		}
		if !cfg.TLS.Enable {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	case "http", "":
		opts := []otlptracehttp.Option{
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
			otlptracehttp.WithEndpoint(cfg.Otel.Addr),
		}
		if !cfg.TLS.Enable {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	default:
		return nil, fmt.Errorf("unsupported otel protocol %q", cfg.Otel.Protocol)
	}
}
