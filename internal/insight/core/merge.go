package core

import (
	"reflect"

	json "github.com/goccy/go-json"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

type factTemplate struct {
	title      string
	source     string
	confidence float64
}

// insightWorthy lists the providers whose values become persisted facts.
var insightWorthy = map[string]factTemplate{
	NameTrafficData:        {title: "Traffic Analysis", source: "SimilarWeb", confidence: 0.9},
	NameAdSpendData:        {title: "Ad Spend Analysis", source: "Adbeat", confidence: 0.85},
	NameCompetitorAnalysis: {title: "Competitor Analysis", source: "SimilarWeb", confidence: 0.9},
}

// InsightWorthy reports whether a provider's Ok value produces a fact.
func InsightWorthy(name string) bool {
	_, ok := insightWorthy[name]
	return ok
}

// Merge projects a record into a report and derives the facts to persist.
// It performs no I/O and its output depends only on rec.
func Merge(rec insight.Record) (insight.Report, []insight.Fact) {
	report := insight.NewReport()
	var facts []insight.Fact
	for _, e := range rec.Entries {
		section := report.Section(e.Group)
		if section == nil {
			continue
		}
		v, ok := e.Result.Get()
		if !ok {
			section[e.Field] = emptyValue(e.Shape)
			continue
		}
		section[e.Field] = project(v, e.Shape)
		if tpl, worthy := insightWorthy[e.Name]; worthy {
			if f, ok := newFact(tpl, v); ok {
				facts = append(facts, f)
			}
		}
	}
	report.Trends[CategoryField] = rec.Category
	return report, facts
}

func emptyValue(s insight.Shape) any {
	if s == insight.ShapeList {
		return []any{}
	}
	return nil
}

func project(v any, s insight.Shape) any {
	if v == nil {
		return emptyValue(s)
	}
	if s == insight.ShapeList {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any{}
		}
	}
	return v
}

func newFact(tpl factTemplate, v any) (insight.Fact, bool) {
	sum, ok := v.(insight.Summarizer)
	if !ok {
		return insight.Fact{}, false
	}
	data, err := json.Marshal(v)
	if err != nil {
		return insight.Fact{}, false
	}
	return insight.Fact{
		Title:      tpl.title,
		Summary:    sum.InsightSummary(),
		Confidence: tpl.confidence,
		Source:     tpl.source,
		Data:       data,
	}, true
}
