// Package category maps a brand name to a classification code and then to the
// trending bucket used by the realtime trends lookup.
package category

import (
	"context"
	"regexp"
	"strconv"

	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/rs/zerolog"
)

// Classifier answers with free text that is expected to contain a numeric
// taxonomy code. The text is not trusted to be well formed.
type Classifier interface {
	Classify(ctx context.Context, brand string) (string, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, brand string) (string, error)

func (f ClassifierFunc) Classify(ctx context.Context, brand string) (string, error) {
	return f(ctx, brand)
}

var digitRun = regexp.MustCompile(`\d+`)

// ExtractCode returns the first run of digits in text. "Retail (901)" yields
// 901; text without digits yields ok=false.
func ExtractCode(text string) (code int, ok bool) {
	run := digitRun.FindString(text)
	if run == "" {
		return 0, false
	}
	n, err := strconv.Atoi(run)
	if err != nil {
		return 0, false
	}
	return n, true
}

type bucketRange struct {
	lo, hi int
	bucket insight.Bucket
}

var bucketTable = []bucketRange{
	{100, 199, insight.BucketBusiness},
	{200, 299, insight.BucketEntertainment},
	{300, 399, insight.BucketScienceTech},
	{400, 499, insight.BucketHealth},
	{500, 599, insight.BucketSports},
}

// BucketFor maps an optional code to a bucket. It is total: nil and codes
// outside every range map to BucketAll.
func BucketFor(code *int) insight.Bucket {
	if code == nil {
		return insight.BucketAll
	}
	for _, r := range bucketTable {
		if *code >= r.lo && *code <= r.hi {
			return r.bucket
		}
	}
	return insight.BucketAll
}

// Resolver runs the classify and bucket stages for a brand.
type Resolver struct {
	classifier Classifier
	log        zerolog.Logger
}

// NewResolver builds a Resolver. A nil classifier makes every brand resolve
// to BucketAll without a code.
func NewResolver(c Classifier, log zerolog.Logger) *Resolver {
	return &Resolver{classifier: c, log: log.With().Str("component", "category").Logger()}
}

// Resolve never fails. Classifier errors and unparseable answers degrade to
// a resolution without a code.
func (r *Resolver) Resolve(ctx context.Context, brand string) insight.CategoryResolution {
	res := insight.CategoryResolution{Brand: brand, Bucket: insight.BucketAll}
	if r == nil || r.classifier == nil {
		return res
	}
	text, err := r.classifier.Classify(ctx, brand)
	if err != nil {
		r.log.Info().Err(err).Str("brand", brand).Msg("classification unavailable")
		return res
	}
	code, ok := ExtractCode(text)
	if !ok {
		r.log.Info().Str("brand", brand).Str("answer", truncate(text, 80)).Msg("no code in classification")
		return res
	}
	res.Code = &code
	res.Bucket = BucketFor(&code)
	return res
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
