package providers

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

// TrafficData is the site's visit volume over the last three full months.
type TrafficData struct {
	Domain      string          `json:"domain"`
	TotalVisits int64           `json:"totalVisits"`
	Monthly     []MonthlyVisits `json:"monthly"`
}

type MonthlyVisits struct {
	Month  string `json:"month"`
	Visits int64  `json:"visits"`
}

func (t TrafficData) InsightSummary() string {
	return humanize.Comma(t.TotalVisits) + " total visits"
}

// CompetitorAnalysis lists sites with an overlapping audience.
type CompetitorAnalysis struct {
	Domain      string   `json:"domain"`
	Competitors []string `json:"competitors"`
	Overlap     float64  `json:"overlap"`
}

func (c CompetitorAnalysis) InsightSummary() string {
	return fmt.Sprintf("%d competitors identified", len(c.Competitors))
}

// AdSpendData is the domain's estimated paid media spend.
type AdSpendData struct {
	TotalSpend float64       `json:"totalSpend"`
	Platforms  PlatformSpend `json:"platforms"`
	TopAds     []AdPlacement `json:"topAds"`
}

type PlatformSpend struct {
	Facebook  float64 `json:"facebook"`
	Instagram float64 `json:"instagram"`
	Google    float64 `json:"google"`
	Other     float64 `json:"other"`
}

type AdPlacement struct {
	Platform    string  `json:"platform"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
}

func (a AdSpendData) InsightSummary() string {
	return "$" + humanize.Commaf(a.TotalSpend) + " total spend"
}

// AdbeatSummary is the category-level spend overview.
type AdbeatSummary struct {
	Domain        string   `json:"domain"`
	TotalSpend    float64  `json:"totalSpend"`
	TopCategories []string `json:"topCategories"`
}

// SimilarWeb serves traffic and competitor data.
type SimilarWeb struct {
	cfg config.SimilarWebConfig
	env Env
}

func NewSimilarWeb(cfg config.SimilarWebConfig, env Env) *SimilarWeb {
	return &SimilarWeb{cfg: cfg, env: env}
}

type visitsResponse struct {
	Visits []struct {
		Date   string  `json:"date"`
		Visits float64 `json:"visits"`
	} `json:"visits"`
}

// Traffic sums monthly visits for the last three full months.
func (s *SimilarWeb) Traffic(ctx context.Context, req insight.Request) insight.Result[TrafficData] {
	if s.cfg.APIKey == "" {
		return insight.Unavailable[TrafficData](insight.ReasonNotConfigured)
	}
	start, end := lastFullMonths(s.env.now(), 3)
	q := url.Values{
		"api_key":          {s.cfg.APIKey},
		"start_date":       {start},
		"end_date":         {end},
		"granularity":      {"monthly"},
		"main_domain_only": {"false"},
	}
	u := s.endpoint("/v1/website/%s/total-traffic-and-engagement/visits", req.Domain, q)
	resp, err := fetchJSON[visitsResponse](ctx, s.env.HTTP, s.env.Decoder, "trafficData", Call{URL: u, Timeout: s.cfg.Timeout})
	if err != nil {
		return insight.Unavailable[TrafficData](classify(err))
	}
	if len(resp.Visits) == 0 {
		return insight.Unavailable[TrafficData](insight.ReasonEmpty)
	}
	out := TrafficData{Domain: req.Domain, Monthly: make([]MonthlyVisits, 0, len(resp.Visits))}
	for _, v := range resp.Visits {
		n := int64(math.Round(v.Visits))
		out.TotalVisits += n
		month := v.Date
		if len(month) >= 7 {
			month = month[:7]
		}
		out.Monthly = append(out.Monthly, MonthlyVisits{Month: month, Visits: n})
	}
	return insight.Ok(out)
}

type similarSite struct {
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

type similarSitesResponse struct {
	SimilarSites *[]similarSite `json:"similar_sites"`
}

// Competitors lists similar sites and their mean overlap score.
func (s *SimilarWeb) Competitors(ctx context.Context, req insight.Request) insight.Result[CompetitorAnalysis] {
	const source = "competitorAnalysis"
	if s.cfg.APIKey == "" {
		return insight.Unavailable[CompetitorAnalysis](insight.ReasonNotConfigured)
	}
	q := url.Values{"api_key": {s.cfg.APIKey}, "limit": {"10"}}
	u := s.endpoint("/v4/website/%s/similar-sites/similarsites", req.Domain, q)
	raw, resp, err := fetchRaw[similarSitesResponse](ctx, s.env.HTTP, s.env.Decoder, source, Call{URL: u, Timeout: s.cfg.Timeout})
	if err != nil {
		return insight.Unavailable[CompetitorAnalysis](classify(err))
	}
	if resp.SimilarSites == nil {
		return insight.Unavailable[CompetitorAnalysis](classify(s.env.Decoder.Reject(insight.ReasonMalformed, source, raw, errMissingField("similar_sites"))))
	}
	sites := *resp.SimilarSites
	out := CompetitorAnalysis{Domain: req.Domain, Competitors: make([]string, 0, len(sites))}
	var total float64
	for _, site := range sites {
		if site.URL == "" {
			continue
		}
		out.Competitors = append(out.Competitors, site.URL)
		total += site.Score
	}
	if n := len(out.Competitors); n > 0 {
		out.Overlap = math.Round(total/float64(n)*1000) / 1000
	}
	return insight.Ok(out)
}

func (s *SimilarWeb) endpoint(format, domain string, q url.Values) string {
	return strings.TrimRight(s.cfg.Endpoint, "/") + fmt.Sprintf(format, url.PathEscape(domain)) + "?" + q.Encode()
}

// lastFullMonths returns the YYYY-MM bounds of the n full months before now.
func lastFullMonths(now time.Time, n int) (start, end string) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -n, 0).Format("2006-01"), first.AddDate(0, -1, 0).Format("2006-01")
}

// Adbeat serves ad spend data.
type Adbeat struct {
	cfg config.AdbeatConfig
	env Env
}

func NewAdbeat(cfg config.AdbeatConfig, env Env) *Adbeat {
	return &Adbeat{cfg: cfg, env: env}
}

type adSpendResponse struct {
	TotalSpend *float64       `json:"totalSpend"`
	Platforms  PlatformSpend  `json:"platforms"`
	TopAds     *[]AdPlacement `json:"topAds"`
}

// AdSpend returns platform spend and the top placements. A document without
// totalSpend or topAds is malformed.
func (a *Adbeat) AdSpend(ctx context.Context, req insight.Request) insight.Result[AdSpendData] {
	const source = "adSpendData"
	if a.cfg.APIKey == "" {
		return insight.Unavailable[AdSpendData](insight.ReasonNotConfigured)
	}
	raw, resp, err := fetchRaw[adSpendResponse](ctx, a.env.HTTP, a.env.Decoder, source, a.call("/v1/domain/%s/ad-spend", req.Domain))
	if err != nil {
		return insight.Unavailable[AdSpendData](classify(err))
	}
	switch {
	case resp.TotalSpend == nil:
		return insight.Unavailable[AdSpendData](classify(a.env.Decoder.Reject(insight.ReasonMalformed, source, raw, errMissingField("totalSpend"))))
	case resp.TopAds == nil:
		return insight.Unavailable[AdSpendData](classify(a.env.Decoder.Reject(insight.ReasonMalformed, source, raw, errMissingField("topAds"))))
	}
	out := AdSpendData{TotalSpend: *resp.TotalSpend, Platforms: resp.Platforms, TopAds: *resp.TopAds}
	if out.TopAds == nil {
		out.TopAds = []AdPlacement{}
	}
	return insight.Ok(out)
}

type adbeatSummaryResponse struct {
	Domain        string   `json:"domain"`
	TotalSpend    *float64 `json:"totalSpend"`
	TopCategories []string `json:"topCategories"`
}

// Summary returns the category-level spend overview.
func (a *Adbeat) Summary(ctx context.Context, req insight.Request) insight.Result[AdbeatSummary] {
	const source = "adbeatData"
	if a.cfg.APIKey == "" {
		return insight.Unavailable[AdbeatSummary](insight.ReasonNotConfigured)
	}
	raw, resp, err := fetchRaw[adbeatSummaryResponse](ctx, a.env.HTTP, a.env.Decoder, source, a.call("/v1/domain/%s/summary", req.Domain))
	if err != nil {
		return insight.Unavailable[AdbeatSummary](classify(err))
	}
	if resp.TotalSpend == nil {
		return insight.Unavailable[AdbeatSummary](classify(a.env.Decoder.Reject(insight.ReasonMalformed, source, raw, errMissingField("totalSpend"))))
	}
	out := AdbeatSummary{Domain: resp.Domain, TotalSpend: *resp.TotalSpend, TopCategories: resp.TopCategories}
	if out.Domain == "" {
		out.Domain = req.Domain
	}
	if out.TopCategories == nil {
		out.TopCategories = []string{}
	}
	return insight.Ok(out)
}

func (a *Adbeat) call(format, domain string) Call {
	return Call{
		URL:     strings.TrimRight(a.cfg.Endpoint, "/") + fmt.Sprintf(format, url.PathEscape(domain)),
		Header:  map[string]string{"Authorization": "Bearer " + a.cfg.APIKey, "Accept": "application/json"},
		Timeout: a.cfg.Timeout,
	}
}
