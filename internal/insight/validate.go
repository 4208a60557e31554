package insight

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ErrRequestInvalid is matched by every RequestError via errors.Is.
var ErrRequestInvalid = errors.New("request invalid")

// RequestError is the only failure Aggregate reports to its caller. It lists
// the request fields that were missing or blank.
type RequestError struct {
	Fields []string
}

func (e *RequestError) Error() string {
	if len(e.Fields) == 0 {
		return ErrRequestInvalid.Error()
	}
	return ErrRequestInvalid.Error() + ": missing " + strings.Join(e.Fields, ", ")
}

func (e *RequestError) Is(target error) bool { return target == ErrRequestInvalid }

// Validate checks that both identifiers are present after trimming.
func (r Request) Validate() error {
	trimmed := Request{Brand: strings.TrimSpace(r.Brand), Domain: strings.TrimSpace(r.Domain)}
	err := requestValidator().Struct(trimmed)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{}
	}
	out := &RequestError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, fe.Field())
	}
	return out
}
