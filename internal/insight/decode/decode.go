// Package decode turns untrusted provider payloads into values or typed
// failures. Nothing here panics or returns an untyped error: callers branch
// on *Failure.Kind.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	json "github.com/goccy/go-json"
	"github.com/mohammad-safakhou/brandlens/internal/insight"
	"github.com/rs/zerolog"
)

// PrefixLimit bounds how many characters of a rejected payload are kept.
const PrefixLimit = 200

// Failure describes a payload that could not be decoded.
type Failure struct {
	Kind   insight.Reason
	Source string
	Prefix string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Source, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Source, f.Kind)
}

func (f *Failure) Unwrap() error { return f.Err }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// UnmarshalFunc is the structured parser used by JSON.
type UnmarshalFunc func(data []byte, v any) error

// Decoder is safe for concurrent use. It holds no per-call state.
type Decoder struct {
	log       zerolog.Logger
	unmarshal UnmarshalFunc
}

// Option customises a Decoder.
type Option func(*Decoder)

// WithUnmarshal swaps the structured parser.
func WithUnmarshal(fn UnmarshalFunc) Option {
	return func(d *Decoder) {
		if fn != nil {
			d.unmarshal = fn
		}
	}
}

// New builds a Decoder that reports failures to log.
func New(log zerolog.Logger, opts ...Option) *Decoder {
	d := &Decoder{
		log:       log.With().Str("component", "decoder").Logger(),
		unmarshal: json.Unmarshal,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// JSON decodes raw into out. Markup is rejected before the parser runs.
func (d *Decoder) JSON(raw []byte, source string, out any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return d.fail(insight.ReasonNonStructured, source, trimmed, nil)
	}
	if err := d.unmarshal(trimmed, out); err != nil {
		return d.fail(insight.ReasonMalformed, source, trimmed, err)
	}
	return nil
}

// Decode parses raw into a generic value.
func (d *Decoder) Decode(raw []byte, source string) (any, error) {
	var v any
	if err := d.JSON(raw, source, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Into decodes raw as a T.
func Into[T any](d *Decoder, raw []byte, source string) (T, error) {
	var v T
	if err := d.JSON(raw, source, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// Reject records a failure detected by a caller after a successful parse,
// for example a document missing required fields.
func (d *Decoder) Reject(kind insight.Reason, source string, raw []byte, err error) error {
	return d.fail(kind, source, bytes.TrimSpace(raw), err)
}

func (d *Decoder) fail(kind insight.Reason, source string, trimmed []byte, err error) *Failure {
	f := &Failure{Kind: kind, Source: source, Prefix: Prefix(trimmed, PrefixLimit), Err: err}
	ev := d.log.Warn().Str("source", source).Str("kind", kind.String()).Str("prefix", f.Prefix)
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg("payload rejected")
	return f
}

// Prefix returns at most n characters of b without splitting a rune.
func Prefix(b []byte, n int) string {
	if utf8.RuneCount(b) <= n {
		return string(b)
	}
	i, count := 0, 0
	for i < len(b) && count < n {
		_, size := utf8.DecodeRune(b[i:])
		i += size
		count++
	}
	return string(b[:i])
}
