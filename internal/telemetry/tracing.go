// Package telemetry настраивает трассировку OpenTelemetry для сервиса.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config описывает экспорт трасс.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	// SampleRatio доля сэмплируемых трасс (0..1]. 0 означает 1.
	SampleRatio float64
	// Writer куда писать спаны; nil означает stdout.
	Writer      io.Writer
	PrettyPrint bool
}

// ShutdownFunc сбрасывает буфер спанов и останавливает провайдер.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup регистрирует глобальный TracerProvider. При выключенной трассировке
// остаётся no-op провайдер OpenTelemetry, а propagator всё равно ставится,
// чтобы traceparent проходил насквозь.
func Setup(cfg Config, logger *log.Entry) (ShutdownFunc, error) {
	if logger == nil {
		logger = log.WithField("component", "telemetry")
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return noopShutdown, nil
	}

	tp, err := NewTracerProvider(cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	logger.WithFields(log.Fields{
		"service":      cfg.ServiceName,
		"sample_ratio": sampleRatio(cfg.SampleRatio),
	}).Info("tracing enabled (stdout exporter)")

	return tp.Shutdown, nil
}

// NewTracerProvider собирает провайдер со stdout-экспортёром.
func NewTracerProvider(cfg Config) (*sdktrace.TracerProvider, error) {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(writer)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create stdout trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio(cfg.SampleRatio)))),
	), nil
}

func sampleRatio(ratio float64) float64 {
	if ratio <= 0 || ratio > 1 {
		return 1
	}
	return ratio
}
