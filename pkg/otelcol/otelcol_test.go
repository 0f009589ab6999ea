package otelcol

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx/fxtest"

	"adagency-backoffice/pkg/config"
)

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	cfg := &config.Config{}
	cfg.Otel.Addr = "localhost:4318"
	cfg.Otel.Protocol = "udp"

	_, err := NewExporter(cfg)
	require.Error(t, err)
}

func TestTracingDisabledWithoutCollector(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	tp, err := ProvideTracerProvider(lc, &config.Config{})
	require.NoError(t, err)
	require.Equal(t, otel.GetTracerProvider(), tp)
}
