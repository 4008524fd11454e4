package otel

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ServiceOrderBook      = "order-book"
	ServiceMatchingEngine = "matching-engine"
)

var (
	orderBookTracer        trace.Tracer
	matchingEngineTracer   trace.Tracer
	tracerMu               sync.RWMutex
	bookTracerProvider     *sdktrace.TracerProvider
	matchingTracerProvider *sdktrace.TracerProvider
	meterProvider          *sdkmetric.MeterProvider
)

// Config holds the OpenTelemetry configuration
type Config struct {
	ServiceVersion   string
	Endpoint         string
	ConnectTimeout   time.Duration
	ExportInterval   time.Duration
	CollectorEnabled bool
}

// Init initializes OpenTelemetry with the given configuration. Without a
// collector, spans and metrics go to the no-op global providers.
func Init(cfg Config) (func(), error) {
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ExportInterval == 0 {
		cfg.ExportInterval = 5 * time.Second
	}

	var cleanup []func()
	shutdown := func(name string, fn func(context.Context) error) func() {
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				log.Error().Err(err).Str("provider", name).Msg("Error shutting down telemetry provider")
			}
		}
	}

	if !cfg.CollectorEnabled {
		return func() {}, nil
	}

	bookResource := initResource(ServiceOrderBook, cfg.ServiceVersion)
	engineResource := initResource(ServiceMatchingEngine, cfg.ServiceVersion)

	bookTP, err := initTracerProvider(cfg, bookResource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize order book tracer provider")
	} else {
		cleanup = append(cleanup, shutdown(ServiceOrderBook, bookTP.Shutdown))
	}

	engineTP, err := initTracerProvider(cfg, engineResource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize matching engine tracer provider")
	} else {
		cleanup = append(cleanup, shutdown(ServiceMatchingEngine, engineTP.Shutdown))
	}

	mp, err := initMeterProvider(cfg, engineResource)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize meter provider, continuing without metrics")
	} else {
		meterProvider = mp
		cleanup = append(cleanup, shutdown("meter", mp.Shutdown))
	}

	tracerMu.Lock()
	if bookTP != nil {
		bookTracerProvider = bookTP
		orderBookTracer = bookTP.Tracer(ServiceOrderBook)
	}
	if engineTP != nil {
		matchingTracerProvider = engineTP
		matchingEngineTracer = engineTP.Tracer(ServiceMatchingEngine)
	}
	tracerMu.Unlock()

	return func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}

func initResource(serviceName, serviceVersion string) *sdkresource.Resource {
	extraResources, err := sdkresource.New(
		context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create resource")
		return sdkresource.Default()
	}

	resource, err := sdkresource.Merge(sdkresource.Default(), extraResources)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to merge resources")
		return sdkresource.Default()
	}
	return resource
}

func dial(ctx context.Context, cfg Config) (*grpc.ClientConn, error) {
	return grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithTimeout(cfg.ConnectTimeout),
	)
}

func initTracerProvider(cfg Config, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetTracerProvider(tp)

	return tp, nil
}

func initMeterProvider(cfg Config, resource *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	ctx := context.Background()

	conn, err := dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.ExportInterval))),
		sdkmetric.WithResource(resource),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// GetOrderBookTracer returns the tracer for book operations. It falls back
// to the global provider, which is a no-op until one is installed.
func GetOrderBookTracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if orderBookTracer != nil {
		return orderBookTracer
	}
	return otel.Tracer(ServiceOrderBook)
}

// GetMatchingEngineTracer returns the tracer for the matching engine
func GetMatchingEngineTracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if matchingEngineTracer != nil {
		return matchingEngineTracer
	}
	return otel.Tracer(ServiceMatchingEngine)
}

// GetTracerProvider returns the appropriate tracer provider based on the service name
func GetTracerProvider(serviceName string) trace.TracerProvider {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	switch serviceName {
	case ServiceOrderBook:
		if bookTracerProvider != nil {
			return bookTracerProvider
		}
	case ServiceMatchingEngine:
		if matchingTracerProvider != nil {
			return matchingTracerProvider
		}
	}
	return otel.GetTracerProvider()
}

// GetMeterProvider returns the configured meter provider or the global one
func GetMeterProvider() metric.MeterProvider {
	if meterProvider != nil {
		return meterProvider
	}
	return otel.GetMeterProvider()
}

// ResetForTesting resets the global variables for testing
func ResetForTesting() {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	orderBookTracer = nil
	matchingEngineTracer = nil
	bookTracerProvider = nil
	matchingTracerProvider = nil
}

// InitForTesting initializes the tracers for testing
func InitForTesting(tracer trace.Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	orderBookTracer = tracer
	matchingEngineTracer = tracer
}
