package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

const adLibraryPage = `<html><body>
<div class="ad-item">
  <span class="advertiser">Acme</span><span class="platform">Instagram</span>
  <span class="start-date">2026-03-01</span><span class="end-date">2026-03-31</span>
  <span class="spend">$1,250.50</span><span class="impressions">12K</span>
  <a class="creative-url" href="https://cdn.example/ad1.jpg">view</a>
</div>
<div class="ad-item"><span class="advertiser">Acme <b>EU</b></span></div>
</body></html>`

func TestMetaAdsParsesCards(t *testing.T) {
	var gotURL string
	render := func(_ context.Context, pageURL, wait, _ string) (string, error) {
		gotURL = pageURL
		if wait != ".ad-item" {
			t.Fatalf("unexpected wait selector %q", wait)
		}
		return adLibraryPage, nil
	}
	m := NewMetaAds(config.MetaAdsConfig{Enabled: true, LibraryURL: "https://ads.example/library/"}, testEnv(nil), "ua", render)

	res := m.Ads(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	ads, ok := res.Get()
	if !ok || len(ads) != 2 {
		t.Fatalf("unexpected result %s %+v", res, ads)
	}
	if !strings.Contains(gotURL, "q=Acme") {
		t.Fatalf("brand missing from url %s", gotURL)
	}
	first := ads[0]
	if first.Platform != "Instagram" || first.Spend != 1250.5 || first.Impressions != 12000 || first.CreativeURL != "https://cdn.example/ad1.jpg" {
		t.Fatalf("unexpected ad %+v", first)
	}
	if ads[1].Advertiser != "Acme EU" || ads[1].Spend != 0 {
		t.Fatalf("unexpected sparse ad %+v", ads[1])
	}
}

func TestMetaAdsDisabled(t *testing.T) {
	m := NewMetaAds(config.MetaAdsConfig{}, testEnv(nil), "ua", func(context.Context, string, string, string) (string, error) {
		t.Fatal("renderer must not run when disabled")
		return "", nil
	})
	res := m.Ads(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	if res.OK() || res.Reason() != insight.ReasonNotConfigured {
		t.Fatalf("expected not_configured, got %s", res)
	}
}

func TestMetaAdsRenderFailures(t *testing.T) {
	cases := []struct {
		name   string
		page   string
		err    error
		reason insight.Reason
	}{
		{"deadline", "", context.DeadlineExceeded, insight.ReasonTimeout},
		{"browser", "", errors.New("chrome not found"), insight.ReasonTransport},
		{"blank", "  ", nil, insight.ReasonMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMetaAds(config.MetaAdsConfig{Enabled: true}, testEnv(nil), "ua", func(context.Context, string, string, string) (string, error) {
				return tc.page, tc.err
			})
			res := m.Ads(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
			if res.OK() || res.Reason() != tc.reason {
				t.Fatalf("expected %s, got %s", tc.reason, res)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	cases := map[string]float64{"$1,000": 1000, "2.5M": 2.5e6, "": 0, "n/a": 0, "300k": 300000}
	for in, want := range cases {
		if got := parseNumber(in); got != want {
			t.Fatalf("parseNumber(%q) = %v want %v", in, got, want)
		}
	}
}
