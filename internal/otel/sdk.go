package otel

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultServiceName = "dirmon"

// SDKOptions configures trace export.
type SDKOptions struct {
	Enabled            bool
	HTTPEndpoint       string
	ServiceName        string
	ServiceVersion     string
	ResourceAttributes map[string]string
}

// SDKOptionsFromEnv reads DIRMON_OTEL_* variables. Export is enabled only
// when an endpoint is set, unless DIRMON_OTEL_ENABLED says otherwise.
func SDKOptionsFromEnv() SDKOptions {
	endpoint := normalizeEndpoint(os.Getenv("DIRMON_OTEL_ENDPOINT"))
	enabled := endpoint != ""
	if rawEnabled, ok := os.LookupEnv("DIRMON_OTEL_ENABLED"); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(rawEnabled)); err == nil {
			enabled = parsed && endpoint != ""
		}
	}
	serviceName := strings.TrimSpace(os.Getenv("DIRMON_OTEL_SERVICE_NAME"))
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	return SDKOptions{
		Enabled:            enabled,
		HTTPEndpoint:       endpoint,
		ServiceName:        serviceName,
		ResourceAttributes: parseResourceAttributes(os.Getenv("DIRMON_OTEL_RESOURCE_ATTRIBUTES")),
	}
}

// SetupSDK installs a global tracer provider exporting over OTLP/HTTP. The
// returned function flushes and shuts the provider down.
func SetupSDK(ctx context.Context, options SDKOptions) (func(context.Context) error, error) {
	if !options.Enabled || options.HTTPEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(options.HTTPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := sdkresource.New(ctx, sdkresource.WithAttributes(resourceAttributes(options)...))
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otelapi.SetTracerProvider(provider)
	otelapi.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(shutdownCtx context.Context) error {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			return errors.Join(errors.New("trace provider shutdown"), err)
		}
		return nil
	}, nil
}

func resourceAttributes(options SDKOptions) []attribute.KeyValue {
	serviceName := strings.TrimSpace(options.ServiceName)
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", serviceName),
	}
	if strings.TrimSpace(options.ServiceVersion) != "" {
		attrs = append(attrs, attribute.String("service.version", options.ServiceVersion))
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		attrs = append(attrs, attribute.String("host.name", host))
	}
	for key, value := range options.ResourceAttributes {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		attrs = append(attrs, attribute.String(trimmedKey, value))
	}
	return attrs
}

// parseResourceAttributes accepts the OTEL_RESOURCE_ATTRIBUTES format:
// comma separated key=value pairs.
func parseResourceAttributes(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	attrs := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		attrs[key] = strings.TrimSpace(value)
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}
