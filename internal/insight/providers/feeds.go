package providers

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/helpers"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"golang.org/x/sync/errgroup"
)

const (
	appleSource     = "Apple Developer News"
	chromiumSource  = "Chromium Blog"
	privacyCategory = "Privacy"
	excerptRunes    = 600
)

var privacyTerms = []string{"privacy", "sandbox"}

// FeedItem is one industry news entry.
type FeedItem struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Published *time.Time `json:"pubDate"`
	Content   string     `json:"content"`
	Source    string     `json:"source"`
	Category  string     `json:"category,omitempty"`
}

// Feeds reads the industry news feeds.
type Feeds struct {
	cfg config.FeedsConfig
	env Env
}

func NewFeeds(cfg config.FeedsConfig, env Env) *Feeds {
	return &Feeds{cfg: cfg, env: env}
}

// AppleUpdates returns Apple developer news.
func (f *Feeds) AppleUpdates(ctx context.Context, _ insight.Request) insight.Result[[]FeedItem] {
	feed, err := f.fetch(ctx, "appleUpdates", f.cfg.Apple)
	if err != nil {
		return insight.Unavailable[[]FeedItem](classify(err))
	}
	out := make([]FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item := toFeedItem(it, appleSource)
		if len(it.Categories) > 0 {
			item.Category = it.Categories[0]
		}
		out = append(out, item)
	}
	return insight.Ok(out)
}

// PrivacyUpdates returns Chromium blog posts whose content mentions privacy
// or the sandbox. Titles and summaries are not matched.
func (f *Feeds) PrivacyUpdates(ctx context.Context, _ insight.Request) insight.Result[[]FeedItem] {
	feed, err := f.fetch(ctx, "privacyUpdates", f.cfg.Chromium)
	if err != nil {
		return insight.Unavailable[[]FeedItem](classify(err))
	}
	out := make([]FeedItem, 0)
	for _, it := range feed.Items {
		if !helpers.ContainsFold(it.Content, privacyTerms...) {
			continue
		}
		item := toFeedItem(it, chromiumSource)
		item.Category = privacyCategory
		out = append(out, item)
	}
	return insight.Ok(out)
}

// MartechUpdates reads every configured martech feed concurrently. Items keep
// feed order. The result is unavailable only when every feed failed.
func (f *Feeds) MartechUpdates(ctx context.Context, _ insight.Request) insight.Result[[]FeedItem] {
	sources := f.cfg.Martech
	if len(sources) == 0 {
		return insight.Unavailable[[]FeedItem](insight.ReasonNotConfigured)
	}
	perFeed := make([][]FeedItem, len(sources))
	errs := make([]error, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			feed, err := f.fetch(ctx, "martechUpdates:"+src.Name, src.URL)
			if err != nil {
				errs[i] = err
				return nil
			}
			items := make([]FeedItem, 0, len(feed.Items))
			for _, it := range feed.Items {
				item := toFeedItem(it, src.Name)
				if len(it.Categories) > 0 {
					item.Category = it.Categories[0]
				}
				items = append(items, item)
			}
			perFeed[i] = items
			return nil
		})
	}
	_ = g.Wait()

	out := make([]FeedItem, 0)
	failed := 0
	var firstErr error
	for i := range sources {
		if errs[i] != nil {
			failed++
			if firstErr == nil {
				firstErr = errs[i]
			}
			f.env.Log.Debug().Err(errs[i]).Str("feed", sources[i].Name).Msg("martech feed unavailable")
			continue
		}
		out = append(out, perFeed[i]...)
	}
	if failed == len(sources) {
		return insight.Unavailable[[]FeedItem](classify(firstErr))
	}
	return insight.Ok(out)
}

func (f *Feeds) fetch(ctx context.Context, source, url string) (*gofeed.Feed, error) {
	if url == "" {
		return nil, errNotConfigured
	}
	raw, err := f.env.HTTP.Fetch(ctx, Call{
		URL:     url,
		Timeout: f.cfg.Timeout,
		Header:  map[string]string{"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.5"},
	})
	if err != nil {
		return nil, err
	}
	return f.env.Decoder.Feed(raw, source)
}

func toFeedItem(it *gofeed.Item, source string) FeedItem {
	content := it.Content
	if content == "" {
		content = it.Description
	}
	item := FeedItem{
		Title:   helpers.PlainText(it.Title),
		Link:    it.Link,
		Content: helpers.Excerpt(content, excerptRunes),
		Source:  source,
	}
	switch {
	case it.PublishedParsed != nil:
		t := it.PublishedParsed.UTC()
		item.Published = &t
	case it.UpdatedParsed != nil:
		t := it.UpdatedParsed.UTC()
		item.Published = &t
	}
	return item
}
