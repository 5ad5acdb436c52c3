package otel

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestParseResourceAttributes(t *testing.T) {
	attrs := parseResourceAttributes("env=dev, team = core ,invalid,=skip")
	if attrs["env"] != "dev" {
		t.Fatalf("expected env=dev, got %q", attrs["env"])
	}
	if attrs["team"] != "core" {
		t.Fatalf("expected team=core, got %q", attrs["team"])
	}
	if _, ok := attrs["invalid"]; ok {
		t.Fatalf("expected invalid attribute to be skipped")
	}
	if _, ok := attrs[""]; ok {
		t.Fatalf("expected empty key to be skipped")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:4318":  "127.0.0.1:4318",
		"https://localhost:4318": "localhost:4318",
		"127.0.0.1:4318/":        "127.0.0.1:4318",
		"":                       "",
	}
	for input, expected := range cases {
		if got := normalizeEndpoint(input); got != expected {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestSDKOptionsFromEnv(t *testing.T) {
	t.Setenv("DIRMON_OTEL_ENDPOINT", "http://127.0.0.1:9998/")
	t.Setenv("DIRMON_OTEL_SERVICE_NAME", "dirmon-test")
	t.Setenv("DIRMON_OTEL_RESOURCE_ATTRIBUTES", "env=staging")

	opts := SDKOptionsFromEnv()
	if !opts.Enabled {
		t.Fatalf("expected export enabled when endpoint is set")
	}
	if opts.ServiceName != "dirmon-test" {
		t.Fatalf("expected service name override, got %q", opts.ServiceName)
	}
	if opts.HTTPEndpoint != "127.0.0.1:9998" {
		t.Fatalf("expected normalized endpoint, got %q", opts.HTTPEndpoint)
	}
	if opts.ResourceAttributes["env"] != "staging" {
		t.Fatalf("expected resource attribute env=staging, got %v", opts.ResourceAttributes)
	}
}

func TestSDKOptionsFromEnvDisabledFlag(t *testing.T) {
	t.Setenv("DIRMON_OTEL_ENDPOINT", "127.0.0.1:4318")
	t.Setenv("DIRMON_OTEL_ENABLED", "false")

	if SDKOptionsFromEnv().Enabled {
		t.Fatalf("expected export disabled by flag")
	}
}

func TestSetupSDKDisabledIsNoop(t *testing.T) {
	shutdown, err := SetupSDK(context.Background(), SDKOptions{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRecordSpanEventOnRecordingSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	RecordSpanEvent(ctx, "would_block")
	RecordSpanEvent(ctx, "")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	events := spans[0].Events()
	if len(events) != 1 || events[0].Name != "would_block" {
		t.Fatalf("expected single would_block event, got %v", events)
	}
}
