package telemetry

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := Init(context.Background(), "catalog-search")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown failed: %v", err)
	}
}

func TestSampleRate(t *testing.T) {
	cases := map[string]float64{
		"":     1,
		"0.25": 0.25,
		"abc":  1,
		"-3":   0,
		"7":    1,
	}
	for raw, want := range cases {
		t.Setenv("OTEL_TRACE_SAMPLE_RATE", raw)
		if got := sampleRate(); got != want {
			t.Fatalf("sampleRate(%q) = %v, want %v", raw, got, want)
		}
	}
}
