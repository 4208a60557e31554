package runtime

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/rs/zerolog"
)

func TestSetupTelemetryServesPrometheus(t *testing.T) {
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{ServiceName: "brandlens-test"}, TelemetryOptions{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("SetupTelemetry: %v", err)
	}
	defer tel.Shutdown(context.Background())

	counter, err := tel.Meter.Int64Counter("provider_outcomes_total")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	srv := httptest.NewServer(tel.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "provider_outcomes_total") {
		t.Fatalf("metric not exported:\n%s", body)
	}
}

func TestShutdownNil(t *testing.T) {
	var tel *Telemetry
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
