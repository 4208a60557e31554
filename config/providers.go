package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ProvidersConfig holds one block per external source. A provider whose
// credential is empty is still registered and reports itself as not
// configured.
type ProvidersConfig struct {
	HTTP            HTTPConfig            `mapstructure:"http"`
	GoogleTrends    GoogleTrendsConfig    `mapstructure:"google_trends"`
	Feeds           FeedsConfig           `mapstructure:"feeds"`
	SimilarWeb      SimilarWebConfig      `mapstructure:"similarweb"`
	Adbeat          AdbeatConfig          `mapstructure:"adbeat"`
	Twitter         TwitterConfig         `mapstructure:"twitter"`
	Reddit          RedditConfig          `mapstructure:"reddit"`
	ExplodingTopics ExplodingTopicsConfig `mapstructure:"exploding_topics"`
	MetaAds         MetaAdsConfig         `mapstructure:"meta_ads"`
	OpenAI          OpenAIConfig          `mapstructure:"openai"`
}

// HTTPConfig tunes the shared outbound client.
type HTTPConfig struct {
	Retries   int           `mapstructure:"retries"`
	Backoff   time.Duration `mapstructure:"backoff"`
	UserAgent string        `mapstructure:"user_agent"`
}

// GoogleTrendsConfig serves both interest-over-time and realtime trending.
type GoogleTrendsConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Language string        `mapstructure:"language"`
	TZ       int           `mapstructure:"tz"`
	Geo      string        `mapstructure:"geo"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// FeedSource is one named feed URL.
type FeedSource struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// FeedsConfig lists the industry feeds.
type FeedsConfig struct {
	Apple    string        `mapstructure:"apple"`
	Chromium string        `mapstructure:"chromium"`
	Martech  []FeedSource  `mapstructure:"martech"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SimilarWebConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AdbeatConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type TwitterConfig struct {
	BearerToken string        `mapstructure:"bearer_token"`
	Endpoint    string        `mapstructure:"endpoint"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RedditConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	UserAgent    string        `mapstructure:"user_agent"`
	AuthURL      string        `mapstructure:"auth_url"`
	Endpoint     string        `mapstructure:"endpoint"`
	Subreddits   []string      `mapstructure:"subreddits"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ExplodingTopicsConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetaAdsConfig drives the headless-browser scrape of the Meta Ad Library.
type MetaAdsConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	LibraryURL string        `mapstructure:"library_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// OpenAIConfig configures the brand classification assistant.
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Normalize fills unset timeouts and endpoints.
func (p ProvidersConfig) Normalize() ProvidersConfig {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	str := func(s *string, v string) {
		if strings.TrimSpace(*s) == "" {
			*s = v
		}
	}
	if p.HTTP.Retries < 0 {
		p.HTTP.Retries = 0
	}
	def(&p.HTTP.Backoff, 300*time.Millisecond)
	str(&p.HTTP.UserAgent, "brandlens/1.0")

	str(&p.GoogleTrends.BaseURL, "https://trends.google.com")
	str(&p.GoogleTrends.Language, "en-US")
	str(&p.GoogleTrends.Geo, "US")
	def(&p.GoogleTrends.Timeout, 10*time.Second)

	str(&p.Feeds.Apple, "https://developer.apple.com/news/rss/news.rss")
	str(&p.Feeds.Chromium, "https://blog.chromium.org/feeds/posts/default")
	if len(p.Feeds.Martech) == 0 {
		p.Feeds.Martech = []FeedSource{
			{Name: "G2", URL: "https://www.g2.com/news/feed"},
			{Name: "MarTech", URL: "https://martech.org/feed/"},
		}
	}
	def(&p.Feeds.Timeout, 8*time.Second)

	str(&p.SimilarWeb.Endpoint, "https://api.similarweb.com")
	def(&p.SimilarWeb.Timeout, 10*time.Second)
	str(&p.Adbeat.Endpoint, "https://api.adbeat.com")
	def(&p.Adbeat.Timeout, 10*time.Second)
	str(&p.Twitter.Endpoint, "https://api.twitter.com")
	def(&p.Twitter.Timeout, 8*time.Second)
	str(&p.Reddit.AuthURL, "https://www.reddit.com/api/v1/access_token")
	str(&p.Reddit.Endpoint, "https://oauth.reddit.com")
	str(&p.Reddit.UserAgent, "brandlens/1.0")
	def(&p.Reddit.Timeout, 10*time.Second)
	str(&p.ExplodingTopics.Endpoint, "https://api.explodingtopics.com")
	def(&p.ExplodingTopics.Timeout, 8*time.Second)
	str(&p.MetaAds.LibraryURL, "https://www.facebook.com/ads/library/")
	def(&p.MetaAds.Timeout, 30*time.Second)
	str(&p.OpenAI.Model, "gpt-4o-mini")
	def(&p.OpenAI.Timeout, 15*time.Second)
	return p
}

// Validate checks feed definitions; credentials are optional.
func (p ProvidersConfig) Validate() error {
	seen := map[string]struct{}{}
	for i, f := range p.Feeds.Martech {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("providers.feeds.martech[%d]: name and url required", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("providers.feeds.martech: duplicate feed %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

func setProviderDefaults(v *viper.Viper) {
	v.SetDefault("providers.http.retries", 1)
	v.SetDefault("providers.http.backoff", 300*time.Millisecond)
	v.SetDefault("providers.http.user_agent", "brandlens/1.0")
	v.SetDefault("providers.google_trends.base_url", "https://trends.google.com")
	v.SetDefault("providers.google_trends.language", "en-US")
	v.SetDefault("providers.google_trends.tz", 360)
	v.SetDefault("providers.google_trends.geo", "US")
	v.SetDefault("providers.google_trends.timeout", 10*time.Second)
	v.SetDefault("providers.feeds.timeout", 8*time.Second)
	v.SetDefault("providers.similarweb.api_key", "")
	v.SetDefault("providers.adbeat.api_key", "")
	v.SetDefault("providers.twitter.bearer_token", "")
	v.SetDefault("providers.reddit.client_id", "")
	v.SetDefault("providers.reddit.client_secret", "")
	v.SetDefault("providers.exploding_topics.api_key", "")
	v.SetDefault("providers.meta_ads.enabled", false)
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
}
