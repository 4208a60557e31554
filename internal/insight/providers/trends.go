package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/mohammad-safakhou/brandlens/internal/insight/category"
)

const (
	trendsWindow      = "today 1-m"
	trendsMaxKeywords = 5
	trendingStories   = 20
)

// xssiGuard prefixes every Google Trends JSON answer.
var xssiGuard = []byte(")]}'")

// TrendPoint is one keyword's relative interest at one instant.
type TrendPoint struct {
	Keyword   string    `json:"keyword"`
	Interest  int       `json:"interest"`
	Timestamp time.Time `json:"timestamp"`
}

// TrendingStory is a realtime trending story in the resolved category.
type TrendingStory struct {
	Title    string           `json:"title"`
	Entities []string         `json:"entities"`
	Articles []TrendingSource `json:"articles"`
}

// TrendingSource is an article attached to a trending story.
type TrendingSource struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// GoogleTrends talks to the unofficial Google Trends endpoints.
type GoogleTrends struct {
	cfg config.GoogleTrendsConfig
	env Env
}

func NewGoogleTrends(cfg config.GoogleTrendsConfig, env Env) *GoogleTrends {
	return &GoogleTrends{cfg: cfg, env: env}
}

// Keywords returns the brand followed by its words, deduplicated and capped.
func Keywords(brand string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" {
			return
		}
		key := strings.ToLower(k)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	add(brand)
	for _, w := range strings.Fields(brand) {
		add(w)
	}
	if len(out) > trendsMaxKeywords {
		out = out[:trendsMaxKeywords]
	}
	return out
}

type exploreItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type exploreRequest struct {
	ComparisonItem []exploreItem `json:"comparisonItem"`
	Category       int           `json:"category"`
	Property       string        `json:"property"`
}

type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Time    string `json:"time"`
			Value   []int  `json:"value"`
			HasData []bool `json:"hasData"`
		} `json:"timelineData"`
	} `json:"default"`
}

// InterestOverTime returns daily interest for the last month.
func (g *GoogleTrends) InterestOverTime(ctx context.Context, req insight.Request) insight.Result[[]TrendPoint] {
	return settle(g.interestOverTime(ctx, req.Brand))
}

func (g *GoogleTrends) interestOverTime(ctx context.Context, brand string) ([]TrendPoint, error) {
	const source = "googleTrends"
	keywords := Keywords(brand)
	items := make([]exploreItem, len(keywords))
	for i, k := range keywords {
		items[i] = exploreItem{Keyword: k, Geo: g.cfg.Geo, Time: trendsWindow}
	}
	payload, err := json.Marshal(exploreRequest{ComparisonItem: items})
	if err != nil {
		return nil, err
	}

	var explore exploreResponse
	if err := g.getGuarded(ctx, source, "/trends/api/explore", url.Values{"req": {string(payload)}}, &explore); err != nil {
		return nil, err
	}
	var token string
	var widgetReq json.RawMessage
	for _, w := range explore.Widgets {
		if w.ID == "TIMESERIES" {
			token, widgetReq = w.Token, w.Request
			break
		}
	}
	if token == "" || len(widgetReq) == 0 {
		return nil, g.env.Decoder.Reject(insight.ReasonMalformed, source, nil, fmt.Errorf("no TIMESERIES widget"))
	}

	var series multilineResponse
	q := url.Values{"req": {string(widgetReq)}, "token": {token}}
	if err := g.getGuarded(ctx, source, "/trends/api/widgetdata/multiline", q, &series); err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(series.Default.TimelineData)*len(keywords))
	for _, row := range series.Default.TimelineData {
		sec, err := strconv.ParseInt(row.Time, 10, 64)
		if err != nil {
			continue
		}
		ts := time.Unix(sec, 0).UTC()
		for i, k := range keywords {
			if i >= len(row.Value) {
				break
			}
			points = append(points, TrendPoint{Keyword: k, Interest: row.Value[i], Timestamp: ts})
		}
	}
	return points, nil
}

type realtimeResponse struct {
	StorySummaries struct {
		TrendingStories []struct {
			Title       string   `json:"title"`
			EntityNames []string `json:"entityNames"`
			Articles    []struct {
				ArticleTitle string `json:"articleTitle"`
				URL          string `json:"url"`
				Source       string `json:"source"`
			} `json:"articles"`
		} `json:"trendingStories"`
	} `json:"storySummaries"`
}

// Trending returns realtime stories for the resolution's bucket, falling back
// to all categories when the bucket has nothing.
func (g *GoogleTrends) Trending(ctx context.Context, res insight.CategoryResolution) insight.Result[[]TrendingStory] {
	return category.WithFallback(g.trendingFor)(ctx, res)
}

func (g *GoogleTrends) trendingFor(ctx context.Context, b insight.Bucket) insight.Result[[]TrendingStory] {
	const source = "trending"
	q := url.Values{
		"cat":  {category.TrendCode(b)},
		"fi":   {"0"},
		"fs":   {"0"},
		"ri":   {"300"},
		"rs":   {strconv.Itoa(trendingStories)},
		"sort": {"0"},
	}
	var rt realtimeResponse
	if err := g.getGuarded(ctx, source, "/trends/api/realtimetrends", q, &rt); err != nil {
		return insight.Unavailable[[]TrendingStory](classify(err))
	}
	stories := rt.StorySummaries.TrendingStories
	if len(stories) == 0 {
		return insight.Unavailable[[]TrendingStory](insight.ReasonEmpty)
	}
	if len(stories) > trendingStories {
		stories = stories[:trendingStories]
	}
	out := make([]TrendingStory, 0, len(stories))
	for _, s := range stories {
		story := TrendingStory{Title: s.Title, Entities: s.EntityNames, Articles: make([]TrendingSource, 0, len(s.Articles))}
		if story.Entities == nil {
			story.Entities = []string{}
		}
		for _, a := range s.Articles {
			story.Articles = append(story.Articles, TrendingSource{Title: a.ArticleTitle, URL: a.URL, Source: a.Source})
		}
		out = append(out, story)
	}
	return insight.Ok(out)
}

// getGuarded fetches a Trends endpoint and strips the XSSI guard before
// decoding.
func (g *GoogleTrends) getGuarded(ctx context.Context, source, path string, q url.Values, out any) error {
	q.Set("hl", g.cfg.Language)
	q.Set("tz", strconv.Itoa(g.cfg.TZ))
	if q.Get("geo") == "" && g.cfg.Geo != "" {
		q.Set("geo", g.cfg.Geo)
	}
	raw, err := g.env.HTTP.Fetch(ctx, Call{
		URL:     strings.TrimRight(g.cfg.BaseURL, "/") + path + "?" + q.Encode(),
		Timeout: g.cfg.Timeout,
	})
	if err != nil {
		return err
	}
	return g.env.Decoder.JSON(stripXSSI(raw), source, out)
}

func stripXSSI(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(trimmed, xssiGuard) {
		return trimmed
	}
	trimmed = bytes.TrimPrefix(trimmed, xssiGuard)
	trimmed = bytes.TrimLeft(trimmed, ", \r\n\t")
	return trimmed
}
