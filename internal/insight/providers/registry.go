package providers

import (
	"net/http"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/insight/category"
	"github.com/mohammad-safakhou/brandlens/internal/insight/core"
	"github.com/mohammad-safakhou/brandlens/internal/insight/decode"
	"github.com/rs/zerolog"
)

// Options overrides the pieces tests need to fake.
type Options struct {
	HTTPClient *http.Client
	Renderer   Renderer
	Chat       ChatCompleter
}

// Set is every adapter built from one configuration.
type Set struct {
	Trends     *GoogleTrends
	Feeds      *Feeds
	SimilarWeb *SimilarWeb
	Adbeat     *Adbeat
	Twitter    *Twitter
	Reddit     *Reddit
	Exploding  *ExplodingTopics
	MetaAds    *MetaAds
	Classifier *Classifier
}

// NewSet wires adapters to a shared HTTP client and decoder.
func NewSet(cfg config.ProvidersConfig, log zerolog.Logger, opts Options) *Set {
	cfg = cfg.Normalize()
	log = log.With().Str("component", "providers").Logger()
	env := Env{
		HTTP:    NewHTTPClientWith(opts.HTTPClient, cfg.HTTP.Retries, cfg.HTTP.Backoff, cfg.HTTP.UserAgent),
		Decoder: decode.New(log),
		Log:     log,
	}
	s := &Set{
		Trends:     NewGoogleTrends(cfg.GoogleTrends, env),
		Feeds:      NewFeeds(cfg.Feeds, env),
		SimilarWeb: NewSimilarWeb(cfg.SimilarWeb, env),
		Adbeat:     NewAdbeat(cfg.Adbeat, env),
		Twitter:    NewTwitter(cfg.Twitter, env),
		Reddit:     NewReddit(cfg.Reddit, env, NewRedditTokenSource(cfg.Reddit, env)),
		Exploding:  NewExplodingTopics(cfg.ExplodingTopics, env),
		MetaAds:    NewMetaAds(cfg.MetaAds, env, cfg.HTTP.UserAgent, opts.Renderer),
	}
	switch {
	case opts.Chat != nil:
		s.Classifier = NewClassifierWith(opts.Chat, cfg.OpenAI)
	default:
		s.Classifier = NewClassifier(cfg.OpenAI, opts.HTTPClient)
	}
	return s
}

// Registry lists the providers in issue order.
func (s *Set) Registry() (*core.Registry, error) {
	list, scalar := insight.ShapeList, insight.ShapeScalar
	return core.NewRegistry(
		core.Bind(core.Spec{Name: core.NameGoogleTrends, Group: insight.GroupTrends, Field: "interestOverTime", Shape: list}, s.Trends.InterestOverTime),
		core.Bind(core.Spec{Name: core.NameAppleUpdates, Group: insight.GroupIndustry, Field: core.NameAppleUpdates, Shape: list}, s.Feeds.AppleUpdates),
		core.Bind(core.Spec{Name: core.NamePrivacyUpdates, Group: insight.GroupIndustry, Field: core.NamePrivacyUpdates, Shape: list}, s.Feeds.PrivacyUpdates),
		core.Bind(core.Spec{Name: core.NameMartechUpdates, Group: insight.GroupIndustry, Field: core.NameMartechUpdates, Shape: list}, s.Feeds.MartechUpdates),
		core.Bind(core.Spec{Name: core.NameTrafficData, Group: insight.GroupAnalytics, Field: core.NameTrafficData, Shape: scalar}, s.SimilarWeb.Traffic),
		core.Bind(core.Spec{Name: core.NameAdSpendData, Group: insight.GroupAnalytics, Field: core.NameAdSpendData, Shape: scalar}, s.Adbeat.AdSpend),
		core.Bind(core.Spec{Name: core.NameCompetitorAnalysis, Group: insight.GroupAnalytics, Field: core.NameCompetitorAnalysis, Shape: scalar}, s.SimilarWeb.Competitors),
		core.Bind(core.Spec{Name: core.NameTwitterMentions, Group: insight.GroupSocial, Field: core.NameTwitterMentions, Shape: list}, s.Twitter.Mentions),
		core.Bind(core.Spec{Name: core.NameRedditMentions, Group: insight.GroupSocial, Field: core.NameRedditMentions, Shape: list}, s.Reddit.Mentions),
		core.Bind(core.Spec{Name: core.NameMetaAds, Group: insight.GroupSocial, Field: core.NameMetaAds, Shape: list}, s.MetaAds.Ads),
		core.Bind(core.Spec{Name: core.NameExplodingTopics, Group: insight.GroupIndustry, Field: core.NameExplodingTopics, Shape: list}, s.Exploding.Topics),
		core.Bind(core.Spec{Name: core.NameAdbeatData, Group: insight.GroupAnalytics, Field: core.NameAdbeatData, Shape: scalar}, s.Adbeat.Summary),
		core.BindCategory(core.Spec{Name: core.NameTrending, Group: insight.GroupTrends, Field: core.NameTrending, Shape: list}, s.Trends.Trending),
	)
}

// Resolver builds the category resolver around the classifier, if any.
func (s *Set) Resolver(log zerolog.Logger) *category.Resolver {
	if s.Classifier == nil {
		return category.NewResolver(nil, log)
	}
	return category.NewResolver(s.Classifier, log)
}
