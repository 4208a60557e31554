package insight

import (
	"errors"
	"testing"
)

func TestNewRequestTrimsIdentifiers(t *testing.T) {
	req, err := NewRequest("  Acme ", "acme.com\n")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if req.Brand != "Acme" || req.Domain != "acme.com" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestNewRequestRejectsBlankFields(t *testing.T) {
	cases := []struct {
		brand, domain string
		fields        []string
	}{
		{"", "acme.com", []string{"brand"}},
		{"Acme", "   ", []string{"domain"}},
		{" ", "", []string{"brand", "domain"}},
	}
	for _, tc := range cases {
		_, err := NewRequest(tc.brand, tc.domain)
		if !errors.Is(err, ErrRequestInvalid) {
			t.Fatalf("NewRequest(%q, %q): expected ErrRequestInvalid, got %v", tc.brand, tc.domain, err)
		}
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			t.Fatalf("expected *RequestError, got %T", err)
		}
		if len(reqErr.Fields) != len(tc.fields) {
			t.Fatalf("fields: want %v got %v", tc.fields, reqErr.Fields)
		}
		for i := range tc.fields {
			if reqErr.Fields[i] != tc.fields[i] {
				t.Fatalf("fields: want %v got %v", tc.fields, reqErr.Fields)
			}
		}
	}
}

func TestResultErasePreservesOutcome(t *testing.T) {
	ok := Erase(Ok([]int{1, 2}))
	v, isOK := ok.Get()
	if !isOK {
		t.Fatal("expected erased Ok result")
	}
	if got, _ := v.([]int); len(got) != 2 {
		t.Fatalf("unexpected value %#v", v)
	}

	missing := Erase(Unavailable[string](ReasonNotConfigured))
	if missing.OK() || missing.Reason() != ReasonNotConfigured {
		t.Fatalf("expected NotConfigured, got %s", missing)
	}
}

func TestUnavailableWithoutReasonDefaultsToTransport(t *testing.T) {
	r := Unavailable[int](ReasonNone)
	if r.Reason() != ReasonTransport {
		t.Fatalf("expected transport_error, got %s", r.Reason())
	}
}

func TestNewReportHasAllSections(t *testing.T) {
	r := NewReport()
	for _, g := range []Group{GroupSocial, GroupIndustry, GroupAnalytics, GroupTrends} {
		if r.Section(g) == nil {
			t.Fatalf("section %s missing", g)
		}
	}
	if r.Section("unknown") != nil {
		t.Fatal("unknown group should not resolve")
	}
}
