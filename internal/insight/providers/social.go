package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mohammad-safakhou/brandlens/config"
	"github.com/mohammad-safakhou/brandlens/internal/helpers"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

// Tweet is a recent post mentioning the brand.
type Tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

// Twitter searches recent posts through the v2 API.
type Twitter struct {
	cfg config.TwitterConfig
	env Env
}

func NewTwitter(cfg config.TwitterConfig, env Env) *Twitter {
	return &Twitter{cfg: cfg, env: env}
}

type tweetSearchResponse struct {
	Data []Tweet `json:"data"`
}

// Mentions returns up to ten recent posts.
func (t *Twitter) Mentions(ctx context.Context, req insight.Request) insight.Result[[]Tweet] {
	if t.cfg.BearerToken == "" {
		return insight.Unavailable[[]Tweet](insight.ReasonNotConfigured)
	}
	q := url.Values{
		"query":        {req.Brand},
		"max_results":  {"10"},
		"tweet.fields": {"created_at,author_id"},
	}
	resp, err := fetchJSON[tweetSearchResponse](ctx, t.env.HTTP, t.env.Decoder, "twitterMentions", Call{
		URL:     strings.TrimRight(t.cfg.Endpoint, "/") + "/2/tweets/search/recent?" + q.Encode(),
		Header:  map[string]string{"Authorization": "Bearer " + t.cfg.BearerToken},
		Timeout: t.cfg.Timeout,
	})
	if err != nil {
		return insight.Unavailable[[]Tweet](classify(err))
	}
	if resp.Data == nil {
		resp.Data = []Tweet{}
	}
	return insight.Ok(resp.Data)
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var (
	positiveWords = []string{"love", "great", "amazing", "best", "awesome", "recommend"}
	negativeWords = []string{"hate", "terrible", "worst", "awful", "disappointed", "bad"}
)

// Sentiment counts how many positive and negative words occur in text.
// Ties are neutral.
func Sentiment(text string) string {
	lower := strings.ToLower(text)
	count := func(words []string) int {
		n := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				n++
			}
		}
		return n
	}
	pos, neg := count(positiveWords), count(negativeWords)
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// RedditMention is a post that names the brand.
type RedditMention struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subreddit string    `json:"subreddit"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	Created   time.Time `json:"created"`
	URL       string    `json:"url"`
	Sentiment string    `json:"sentiment"`
}

// Reddit searches the last month of posts with an application-only token.
type Reddit struct {
	cfg    config.RedditConfig
	env    Env
	tokens *RedditTokenSource
}

// NewReddit builds the adapter. tokens may be nil, in which case every call
// fetches a fresh token.
func NewReddit(cfg config.RedditConfig, env Env, tokens *RedditTokenSource) *Reddit {
	return &Reddit{cfg: cfg, env: env, tokens: tokens}
}

type redditToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				URL         string  `json:"url"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Mentions returns up to 100 posts with a keyword sentiment label.
func (r *Reddit) Mentions(ctx context.Context, req insight.Request) insight.Result[[]RedditMention] {
	if r.cfg.ClientID == "" || r.cfg.ClientSecret == "" {
		return insight.Unavailable[[]RedditMention](insight.ReasonNotConfigured)
	}
	tokens := r.tokens
	if tokens == nil {
		tokens = NewRedditTokenSource(r.cfg, r.env)
	}
	token, err := tokens.Token(ctx)
	if err != nil {
		return insight.Unavailable[[]RedditMention](classify(err))
	}

	q := url.Values{
		"q":     {strconv.Quote(req.Brand)},
		"sort":  {"relevance"},
		"t":     {"month"},
		"limit": {"100"},
	}
	path := "/search"
	if len(r.cfg.Subreddits) > 0 {
		path = "/r/" + strings.Join(r.cfg.Subreddits, "+") + "/search"
		q.Set("restrict_sr", "1")
	}
	listing, err := fetchJSON[redditListing](ctx, r.env.HTTP, r.env.Decoder, "redditMentions", Call{
		URL: strings.TrimRight(r.cfg.Endpoint, "/") + path + "?" + q.Encode(),
		Header: map[string]string{
			"Authorization": "Bearer " + token,
			"User-Agent":    r.cfg.UserAgent,
		},
		Timeout: r.cfg.Timeout,
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
			tokens.Invalidate()
		}
		return insight.Unavailable[[]RedditMention](classify(err))
	}

	out := make([]RedditMention, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		p := c.Data
		out = append(out, RedditMention{
			ID:        p.ID,
			Title:     helpers.PlainText(p.Title),
			Subreddit: p.Subreddit,
			Score:     p.Score,
			Comments:  p.NumComments,
			Created:   time.Unix(int64(p.CreatedUTC), 0).UTC(),
			URL:       p.URL,
			Sentiment: Sentiment(p.Title + " " + p.Selftext),
		})
	}
	return insight.Ok(out)
}

// RedditTokenSource holds the client-credentials token shared by every
// request. It is the only provider state that outlives a request; a token is
// refreshed a minute before it expires.
type RedditTokenSource struct {
	cfg config.RedditConfig
	env Env

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewRedditTokenSource(cfg config.RedditConfig, env Env) *RedditTokenSource {
	return &RedditTokenSource{cfg: cfg, env: env}
}

// Token returns the cached token or fetches a new one.
func (s *RedditTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.env.now()
	if s.token != "" && now.Before(s.expires) {
		return s.token, nil
	}
	basic := base64.StdEncoding.EncodeToString([]byte(s.cfg.ClientID + ":" + s.cfg.ClientSecret))
	tok, err := fetchJSON[redditToken](ctx, s.env.HTTP, s.env.Decoder, "redditMentions:token", Call{
		Method: http.MethodPost,
		URL:    s.cfg.AuthURL,
		Body:   []byte(url.Values{"grant_type": {"client_credentials"}}.Encode()),
		Header: map[string]string{
			"Authorization": "Basic " + basic,
			"Content-Type":  "application/x-www-form-urlencoded",
			"User-Agent":    s.cfg.UserAgent,
		},
		Timeout: s.cfg.Timeout,
	})
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", s.env.Decoder.Reject(insight.ReasonMalformed, "redditMentions:token", nil, errNoAccessToken)
	}
	s.token = tok.AccessToken
	s.expires = now.Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return s.token, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (s *RedditTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
