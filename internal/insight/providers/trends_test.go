package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

func TestKeywordsDedupesAndCaps(t *testing.T) {
	cases := []struct {
		brand string
		want  []string
	}{
		{"Acme", []string{"Acme"}},
		{"Blue Bottle Coffee", []string{"Blue Bottle Coffee", "Blue", "Bottle", "Coffee"}},
		{"go go Go", []string{"go go Go", "go"}},
		{"a b c d e f g", []string{"a b c d e f g", "a", "b", "c", "d"}},
	}
	for _, tc := range cases {
		if got := Keywords(tc.brand); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Keywords(%q) = %v want %v", tc.brand, got, tc.want)
		}
	}
}

func trendsConfig(base string) config.GoogleTrendsConfig {
	return config.GoogleTrendsConfig{BaseURL: base, Language: "en-US", TZ: 360, Geo: "US", Timeout: time.Second}
}

func TestInterestOverTimeFollowsWidgetToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/trends/api/explore", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(")]}'\n" + `{"widgets":[{"id":"RELATED","token":"x"},{"id":"TIMESERIES","token":"tok-1","request":{"time":"today 1-m"}}]}`))
	})
	mux.HandleFunc("/trends/api/widgetdata/multiline", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok-1" {
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(")]}',\n" + `{"default":{"timelineData":[{"time":"1700000000","value":[42,7]},{"time":"bogus","value":[1,1]}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGoogleTrends(trendsConfig(srv.URL), testEnv(srv))
	res := g.InterestOverTime(context.Background(), insight.Request{Brand: "Acme Labs", Domain: "acme.com"})
	points, ok := res.Get()
	if !ok {
		t.Fatalf("expected data, got %s", res)
	}
	want := []TrendPoint{
		{Keyword: "Acme Labs", Interest: 42, Timestamp: time.Unix(1700000000, 0).UTC()},
		{Keyword: "Acme", Interest: 7, Timestamp: time.Unix(1700000000, 0).UTC()},
	}
	if !reflect.DeepEqual(points, want) {
		t.Fatalf("unexpected points %+v", points)
	}
}

func TestInterestOverTimeWithoutWidgetIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`)]}'{"widgets":[]}`))
	}))
	defer srv.Close()

	g := NewGoogleTrends(trendsConfig(srv.URL), testEnv(srv))
	res := g.InterestOverTime(context.Background(), insight.Request{Brand: "Acme", Domain: "acme.com"})
	if res.OK() || res.Reason() != insight.ReasonMalformed {
		t.Fatalf("expected malformed_payload, got %s", res)
	}
}

func TestTrendingFallsBackToAllCategories(t *testing.T) {
	var mu sync.Mutex
	var cats []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cat := r.URL.Query().Get("cat")
		mu.Lock()
		cats = append(cats, cat)
		mu.Unlock()
		if cat == "s" {
			_, _ = w.Write([]byte(`)]}'` + `{"storySummaries":{"trendingStories":[]}}`))
			return
		}
		_, _ = w.Write([]byte(`)]}'` + `{"storySummaries":{"trendingStories":[{"title":"Finals","entityNames":["NBA"],"articles":[{"articleTitle":"Game 7","url":"https://news.example/g7","source":"Example"}]}]}}`))
	}))
	defer srv.Close()

	code := 512
	g := NewGoogleTrends(trendsConfig(srv.URL), testEnv(srv))
	res := g.Trending(context.Background(), insight.CategoryResolution{Brand: "Acme", Code: &code, Bucket: insight.BucketSports})
	stories, ok := res.Get()
	if !ok || len(stories) != 1 || stories[0].Articles[0].Title != "Game 7" {
		t.Fatalf("unexpected result %s %+v", res, stories)
	}
	if !reflect.DeepEqual(cats, []string{"s", "all"}) {
		t.Fatalf("expected sports then all, got %v", cats)
	}
}

func TestTrendingAllBucketDoesNotRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewGoogleTrends(trendsConfig(srv.URL), testEnv(srv))
	res := g.Trending(context.Background(), insight.CategoryResolution{Brand: "Acme", Bucket: insight.BucketAll})
	if res.OK() || res.Reason() != insight.ReasonTransport {
		t.Fatalf("expected transport_error, got %s", res)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}
