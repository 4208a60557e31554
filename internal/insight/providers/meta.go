package providers

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/helpers"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

var errEmptyPage = errors.New("rendered page is empty")

// MetaAd is one ad card from the Meta Ad Library.
type MetaAd struct {
	Advertiser  string  `json:"advertiser"`
	Platform    string  `json:"platform"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	CreativeURL string  `json:"creativeUrl"`
}

// Renderer loads a page and returns its final HTML.
type Renderer func(ctx context.Context, pageURL, waitSelector, userAgent string) (string, error)

// MetaAds scrapes the Meta Ad Library with a headless browser.
type MetaAds struct {
	cfg    config.MetaAdsConfig
	env    Env
	render Renderer
	ua     string
}

// NewMetaAds uses chromedp unless render is non-nil.
func NewMetaAds(cfg config.MetaAdsConfig, env Env, userAgent string, render Renderer) *MetaAds {
	if render == nil {
		render = renderChromedp
	}
	return &MetaAds{cfg: cfg, env: env, render: render, ua: userAgent}
}

// Ads returns the ads the library lists for the brand.
func (m *MetaAds) Ads(ctx context.Context, req insight.Request) insight.Result[[]MetaAd] {
	if !m.cfg.Enabled {
		return insight.Unavailable[[]MetaAd](insight.ReasonNotConfigured)
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	q := url.Values{
		"active_status": {"all"},
		"ad_type":       {"all"},
		"country":       {"ALL"},
		"q":             {req.Brand},
		"search_type":   {"keyword_unordered"},
	}
	page, err := m.render(ctx, m.cfg.LibraryURL+"?"+q.Encode(), ".ad-item", m.ua)
	if err != nil {
		return insight.Unavailable[[]MetaAd](classify(err))
	}
	return settle(m.parse(page))
}

func (m *MetaAds) parse(page string) ([]MetaAd, error) {
	const source = "metaAds"
	if strings.TrimSpace(page) == "" {
		return nil, m.env.Decoder.Reject(insight.ReasonMalformed, source, nil, errEmptyPage)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, m.env.Decoder.Reject(insight.ReasonMalformed, source, []byte(page), err)
	}
	out := make([]MetaAd, 0)
	doc.Find(".ad-item").Each(func(_ int, s *goquery.Selection) {
		text := func(sel string) string { return helpers.PlainText(s.Find(sel).First().Text()) }
		creative, _ := s.Find(".creative-url").First().Attr("href")
		out = append(out, MetaAd{
			Advertiser:  text(".advertiser"),
			Platform:    text(".platform"),
			StartDate:   text(".start-date"),
			EndDate:     text(".end-date"),
			Spend:       parseNumber(text(".spend")),
			Impressions: int64(parseNumber(text(".impressions"))),
			CreativeURL: creative,
		})
	})
	return out, nil
}

// parseNumber reads "$1,250.50" or "12K" style figures; anything else is 0.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(strings.NewReplacer("$", "", ",", "", " ", "").Replace(s))
	if s == "" {
		return 0
	}
	mult := 1.0
	switch strings.ToUpper(s[len(s)-1:]) {
	case "K":
		mult, s = 1e3, s[:len(s)-1]
	case "M":
		mult, s = 1e6, s[:len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v * mult
}

func renderChromedp(ctx context.Context, pageURL, waitSelector, userAgent string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	if waitSelector != "" && !strings.Contains(html, strings.TrimPrefix(waitSelector, ".")) {
		// Results render late; give the page one more pass.
		_ = chromedp.Run(bctx,
			chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	}
	return html, nil
}
