package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

func TestTrafficSumsLastThreeMonths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/v1/website/acme.com/total-traffic-and-engagement/visits" {
			http.NotFound(w, r)
			return
		}
		if q.Get("api_key") != "sw" || q.Get("start_date") != "2026-01" || q.Get("end_date") != "2026-03" {
			http.Error(w, "bad query "+r.URL.RawQuery, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"visits":[{"date":"2026-01-01","visits":3999.6},{"date":"2026-02-01","visits":4000},{"date":"2026-03-01","visits":4000.4}]}`))
	}))
	defer srv.Close()

	s := NewSimilarWeb(config.SimilarWebConfig{APIKey: "sw", Endpoint: srv.URL, Timeout: time.Second}, testEnv(srv))
	res := s.Traffic(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	data, ok := res.Get()
	if !ok {
		t.Fatalf("expected data, got %s", res)
	}
	if data.TotalVisits != 12000 || len(data.Monthly) != 3 || data.Monthly[0].Month != "2026-01" {
		t.Fatalf("unexpected traffic %+v", data)
	}
	if got := data.InsightSummary(); got != "12,000 total visits" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestTrafficWithoutKeyIsNotConfigured(t *testing.T) {
	s := NewSimilarWeb(config.SimilarWebConfig{}, testEnv(nil))
	res := s.Traffic(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	if res.OK() || res.Reason() != insight.ReasonNotConfigured {
		t.Fatalf("expected not_configured, got %s", res)
	}
}

func TestCompetitorsSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"similar_sites":[{"url":"rival.com","score":0.8},{"url":"other.com","score":0.6},{"url":"","score":0.1}]}`))
	}))
	defer srv.Close()

	s := NewSimilarWeb(config.SimilarWebConfig{APIKey: "sw", Endpoint: srv.URL}, testEnv(srv))
	res := s.Competitors(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	data, ok := res.Get()
	if !ok {
		t.Fatalf("expected data, got %s", res)
	}
	if len(data.Competitors) != 2 || data.Overlap != 0.7 {
		t.Fatalf("unexpected competitors %+v", data)
	}
	if data.InsightSummary() != "2 competitors identified" {
		t.Fatalf("unexpected summary %q", data.InsightSummary())
	}
}

func TestAdSpendUsesBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ab-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"totalSpend":10000,"platforms":{"facebook":6000,"google":4000},"topAds":[]}`))
	}))
	defer srv.Close()

	a := NewAdbeat(config.AdbeatConfig{APIKey: "ab-key", Endpoint: srv.URL}, testEnv(srv))
	res := a.AdSpend(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	data, ok := res.Get()
	if !ok {
		t.Fatalf("expected data, got %s", res)
	}
	if data.InsightSummary() != "$10,000 total spend" || data.TopAds == nil {
		t.Fatalf("unexpected ad spend %+v (%s)", data, data.InsightSummary())
	}
}

func TestAdbeatSummaryMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalSpend": "lots"`))
	}))
	defer srv.Close()

	a := NewAdbeat(config.AdbeatConfig{APIKey: "ab-key", Endpoint: srv.URL}, testEnv(srv))
	res := a.Summary(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	if res.OK() || res.Reason() != insight.ReasonMalformed {
		t.Fatalf("expected malformed_payload, got %s", res)
	}
}

func TestLastFullMonths(t *testing.T) {
	start, end := lastFullMonths(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), 3)
	if start != "2025-10" || end != "2025-12" {
		t.Fatalf("unexpected window %s..%s", start, end)
	}
}

func quotaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"quota exceeded"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompetitorsWithoutSimilarSitesIsMalformed(t *testing.T) {
	srv := quotaServer(t)
	s := NewSimilarWeb(config.SimilarWebConfig{APIKey: "sw", Endpoint: srv.URL}, testEnv(srv))
	res := s.Competitors(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	if res.OK() || res.Reason() != insight.ReasonMalformed {
		t.Fatalf("expected malformed_payload, got %s", res)
	}
}

func TestAdSpendWithoutRequiredFieldsIsMalformed(t *testing.T) {
	cases := map[string]string{
		"error body":      `{"error":"quota exceeded"}`,
		"no topAds":       `{"totalSpend":100,"platforms":{"google":100}}`,
		"no totalSpend":   `{"platforms":{"google":100},"topAds":[]}`,
		"null totalSpend": `{"totalSpend":null,"topAds":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			a := NewAdbeat(config.AdbeatConfig{APIKey: "ab-key", Endpoint: srv.URL}, testEnv(srv))
			res := a.AdSpend(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
			if res.OK() || res.Reason() != insight.ReasonMalformed {
				t.Fatalf("expected malformed_payload, got %s", res)
			}
		})
	}
}

func TestAdbeatSummaryWithoutTotalSpendIsMalformed(t *testing.T) {
	srv := quotaServer(t)
	a := NewAdbeat(config.AdbeatConfig{APIKey: "ab-key", Endpoint: srv.URL}, testEnv(srv))
	res := a.Summary(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	if res.OK() || res.Reason() != insight.ReasonMalformed {
		t.Fatalf("expected malformed_payload, got %s", res)
	}
}

func TestAdbeatSummaryDefaultsDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalSpend":0}`))
	}))
	defer srv.Close()

	a := NewAdbeat(config.AdbeatConfig{APIKey: "ab-key", Endpoint: srv.URL}, testEnv(srv))
	data, ok := a.Summary(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"}).Get()
	if !ok || data.Domain != "acme.com" || data.TopCategories == nil {
		t.Fatalf("unexpected summary %+v", data)
	}
}
