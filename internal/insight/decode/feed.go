package decode

import (
	"bytes"
	"errors"

	"github.com/mmcdole/gofeed"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
)

var errEmptyFeed = errors.New("empty feed document")

var htmlMarkers = [][]byte{[]byte("<!doctype html"), []byte("<html")}

// Feed parses an RSS, Atom or JSON feed. HTML documents, typically upstream
// error pages, are rejected without parsing.
func (d *Decoder) Feed(raw []byte, source string) (*gofeed.Feed, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, d.fail(insight.ReasonMalformed, source, trimmed, errEmptyFeed)
	}
	if isHTMLDocument(trimmed) {
		return nil, d.fail(insight.ReasonNonStructured, source, trimmed, nil)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(trimmed))
	if err != nil {
		kind := insight.ReasonMalformed
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			kind = insight.ReasonNonStructured
		}
		return nil, d.fail(kind, source, trimmed, err)
	}
	return feed, nil
}

func isHTMLDocument(b []byte) bool {
	head := b
	if len(head) > 64 {
		head = head[:64]
	}
	head = bytes.ToLower(head)
	for _, m := range htmlMarkers {
		if bytes.HasPrefix(head, m) {
			return true
		}
	}
	return false
}
