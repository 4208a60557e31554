package providers

import (
	"time"

	"github.com/mohammad-safakhou/brandlens/internal/insight/decode"
	"github.com/rs/zerolog"
)

// Env is what every adapter shares.
type Env struct {
	HTTP    *HTTPClient
	Decoder *decode.Decoder
	Log     zerolog.Logger
	Now     func() time.Time
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}
