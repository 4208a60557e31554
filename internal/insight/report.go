package insight

import (
	"encoding/json"
	"time"
)

// Group is one of the four sections of a Report.
type Group string

const (
	GroupSocial    Group = "social"
	GroupIndustry  Group = "industry"
	GroupAnalytics Group = "analytics"
	GroupTrends    Group = "trends"
)

// Shape decides the empty default a field takes when its provider is
// unavailable.
type Shape uint8

const (
	// ShapeList fields default to an empty array.
	ShapeList Shape = iota
	// ShapeScalar fields default to null.
	ShapeScalar
)

// Bucket is the coarse category used by the realtime trending lookup.
type Bucket string

const (
	BucketBusiness      Bucket = "business"
	BucketEntertainment Bucket = "entertainment"
	BucketScienceTech   Bucket = "scienceTech"
	BucketHealth        Bucket = "health"
	BucketSports        Bucket = "sports"
	BucketAll           Bucket = "all"
)

// CategoryResolution is the outcome of classifying a brand. Bucket is always
// set; Code is nil when no numeric code could be extracted.
type CategoryResolution struct {
	Brand  string `json:"brand"`
	Code   *int   `json:"classificationCode"`
	Bucket Bucket `json:"trendingBucket"`
}

// Entry is one provider's settled result inside a Record.
type Entry struct {
	Name   string
	Group  Group
	Field  string
	Shape  Shape
	Result Result[any]
}

// Record is the aggregate of one request. Entries are kept in issue order.
type Record struct {
	Request  Request
	Category CategoryResolution
	Entries  []Entry
}

// Lookup finds an entry by provider name.
func (r Record) Lookup(name string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Section maps a field name to the projected provider value.
type Section map[string]any

// Report is the externally visible, always complete aggregation result.
type Report struct {
	Social    Section `json:"social"`
	Industry  Section `json:"industry"`
	Analytics Section `json:"analytics"`
	Trends    Section `json:"trends"`
}

// NewReport returns a report whose four sections are present and empty.
func NewReport() Report {
	return Report{
		Social:    Section{},
		Industry:  Section{},
		Analytics: Section{},
		Trends:    Section{},
	}
}

// Section returns the section backing g, or nil for an unknown group.
func (r Report) Section(g Group) Section {
	switch g {
	case GroupSocial:
		return r.Social
	case GroupIndustry:
		return r.Industry
	case GroupAnalytics:
		return r.Analytics
	case GroupTrends:
		return r.Trends
	}
	return nil
}

// Fact is a derived record persisted for a workspace. WorkspaceID and ID are
// stamped by the persistence path; merging leaves them empty.
type Fact struct {
	ID          string          `json:"id,omitempty"`
	WorkspaceID string          `json:"workspaceId,omitempty"`
	Title       string          `json:"title"`
	Summary     string          `json:"summary"`
	Confidence  float64         `json:"confidence"`
	Source      string          `json:"source"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Summarizer is implemented by provider values that can describe themselves
// in one line for an insight fact.
type Summarizer interface {
	InsightSummary() string
}
