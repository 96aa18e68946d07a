package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission/internal/logging"
)

// TracerName is the instrumentation scope of link-sync and orbit spans.
const TracerName = "github.com/I-JYan/Simulation-of-SAR-Satellite-Data-Transmission"

const (
	defaultServiceName  = "sar-link-simulator"
	defaultOTLPEndpoint = "localhost:4317"
)

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string  // stdout | otlp
	Endpoint    string  // otlp collector address
	SampleRatio float64 // 0..1
	Writer      io.Writer
}

// TracingConfigFromEnv reads SIM_TRACING_ENABLED, SIM_TRACING_EXPORTER,
// SIM_TRACING_SERVICE_NAME, SIM_TRACING_SAMPLE_RATIO and SIM_OTLP_ENDPOINT.
// An out-of-range ratio falls back to 1.
func TracingConfigFromEnv() TracingConfig {
	ratio := 1.0
	if v, err := strconv.ParseFloat(os.Getenv("SIM_TRACING_SAMPLE_RATIO"), 64); err == nil && v >= 0 && v <= 1 {
		ratio = v
	}
	return TracingConfig{
		Enabled:     strings.EqualFold(os.Getenv("SIM_TRACING_ENABLED"), "true"),
		ServiceName: envOr("SIM_TRACING_SERVICE_NAME", defaultServiceName),
		Exporter:    strings.ToLower(envOr("SIM_TRACING_EXPORTER", "stdout")),
		Endpoint:    os.Getenv("SIM_OTLP_ENDPOINT"),
		SampleRatio: ratio,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Tracer returns the simulator tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// InitTracing installs the global tracer provider. When tracing is disabled
// it installs a no-op provider. The returned function flushes pending spans.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.Exporter {
	case "stdout", "":
		exp, err = newStdoutExporter(cfg.Writer)
	case "otlp", "otlpgrpc":
		exp, err = newOTLPExporter(ctx, cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("service.namespace", "sar"),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", service),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newStdoutExporter(w io.Writer) (sdktrace.SpanExporter, error) {
	if w == nil {
		w = os.Stderr
	}
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
}

func newOTLPExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	))
}

// ShutdownWithTimeout flushes spans with a five second bound and logs,
// rather than returns, any failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
