// Package core runs the fan-out of provider calls for one aggregation request,
// merges the settled results into a report and hands derived facts to the
// persistence sinks.
package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

// Provider keys. Registry order decides the order of a Record.
const (
	NameGoogleTrends       = "googleTrends"
	NameAppleUpdates       = "appleUpdates"
	NamePrivacyUpdates     = "privacyUpdates"
	NameMartechUpdates     = "martechUpdates"
	NameTrafficData        = "trafficData"
	NameAdSpendData        = "adSpendData"
	NameCompetitorAnalysis = "competitorAnalysis"
	NameTwitterMentions    = "twitterMentions"
	NameRedditMentions     = "redditMentions"
	NameMetaAds            = "metaAds"
	NameExplodingTopics    = "explodingTopics"
	NameAdbeatData         = "adbeatData"
	NameTrending           = "trending"
)

// CategoryField is the trends field that always carries the category resolution.
const CategoryField = "category"

// Spec places a provider's output in the report.
type Spec struct {
	Name  string
	Group insight.Group
	Field string
	Shape insight.Shape
}

// Provider is a registry entry: a spec plus the adapter bound to it with its
// static result type erased.
type Provider struct {
	Spec
	direct    func(context.Context, insight.Request) insight.Result[any]
	dependent func(context.Context, insight.CategoryResolution) insight.Result[any]
}

// Bind registers an adapter that only needs the request.
func Bind[T any](spec Spec, fetch func(context.Context, insight.Request) insight.Result[T]) Provider {
	return Provider{
		Spec: spec,
		direct: func(ctx context.Context, req insight.Request) insight.Result[any] {
			return insight.Erase(fetch(ctx, req))
		},
	}
}

// BindCategory registers an adapter that runs after the category resolver.
func BindCategory[T any](spec Spec, fetch func(context.Context, insight.CategoryResolution) insight.Result[T]) Provider {
	return Provider{
		Spec: spec,
		dependent: func(ctx context.Context, res insight.CategoryResolution) insight.Result[any] {
			return insight.Erase(fetch(ctx, res))
		},
	}
}

// DependsOnCategory reports whether p waits for the category resolution.
func (p Provider) DependsOnCategory() bool { return p.dependent != nil }

// Registry is the immutable, ordered provider list built at start-up.
type Registry struct {
	providers []Provider
}

// NewRegistry validates providers and freezes their order.
func NewRegistry(providers ...Provider) (*Registry, error) {
	names := make(map[string]struct{}, len(providers))
	fields := make(map[string]struct{}, len(providers))
	for i, p := range providers {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("provider %d: name required", i)
		}
		if p.direct == nil && p.dependent == nil {
			return nil, fmt.Errorf("provider %s: no adapter bound", p.Name)
		}
		switch p.Group {
		case insight.GroupSocial, insight.GroupIndustry, insight.GroupAnalytics, insight.GroupTrends:
		default:
			return nil, fmt.Errorf("provider %s: unknown group %q", p.Name, p.Group)
		}
		if strings.TrimSpace(p.Field) == "" {
			return nil, fmt.Errorf("provider %s: field required", p.Name)
		}
		if p.Group == insight.GroupTrends && p.Field == CategoryField {
			return nil, fmt.Errorf("provider %s: field %q is reserved", p.Name, CategoryField)
		}
		if _, dup := names[p.Name]; dup {
			return nil, fmt.Errorf("provider %s registered twice", p.Name)
		}
		key := string(p.Group) + "." + p.Field
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("provider %s: field %s already taken", p.Name, key)
		}
		names[p.Name] = struct{}{}
		fields[key] = struct{}{}
	}
	out := make([]Provider, len(providers))
	copy(out, providers)
	return &Registry{providers: out}, nil
}

// Names lists provider keys in issue order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.providers))
	for i, p := range r.providers {
		out[i] = p.Name
	}
	return out
}

// Len is the number of registered providers.
func (r *Registry) Len() int { return len(r.providers) }
