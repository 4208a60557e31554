package providers

import (
	"context"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/helpers"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

// Topic is an emerging topic related to the brand.
type Topic struct {
	Topic       string  `json:"topic"`
	Score       float64 `json:"score"`
	Description string  `json:"description"`
}

// ExplodingTopics queries the Exploding Topics API.
type ExplodingTopics struct {
	cfg config.ExplodingTopicsConfig
	env Env
}

func NewExplodingTopics(cfg config.ExplodingTopicsConfig, env Env) *ExplodingTopics {
	return &ExplodingTopics{cfg: cfg, env: env}
}

type topicsResponse struct {
	Topics []Topic `json:"topics"`
}

// Topics returns topics that match the brand.
func (e *ExplodingTopics) Topics(ctx context.Context, req insight.Request) insight.Result[[]Topic] {
	if e.cfg.APIKey == "" {
		return insight.Unavailable[[]Topic](insight.ReasonNotConfigured)
	}
	q := url.Values{"api_key": {e.cfg.APIKey}, "keyword": {req.Brand}, "limit": {"20"}}
	resp, err := fetchJSON[topicsResponse](ctx, e.env.HTTP, e.env.Decoder, "explodingTopics", Call{
		URL:     strings.TrimRight(e.cfg.Endpoint, "/") + "/api/v1/topics?" + q.Encode(),
		Timeout: e.cfg.Timeout,
	})
	if err != nil {
		return insight.Unavailable[[]Topic](classify(err))
	}
	out := make([]Topic, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		if strings.TrimSpace(t.Topic) == "" {
			continue
		}
		t.Description = helpers.PlainText(t.Description)
		out = append(out, t)
	}
	return insight.Ok(out)
}
