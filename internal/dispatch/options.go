package dispatch

import (
	"net/http"
)

type requestOptions struct {
	academyID    string
	headers      http.Header
	raw          bool
	publicBearer bool
}

type Option func(*requestOptions)

// WithAcademyID overrides the tenant id for one portal call.
func WithAcademyID(id string) Option {
	return func(o *requestOptions) {
		o.academyID = id
	}
}

// WithHeader sets an extra request header. A Content-Type set here wins over
// the JSON default, except for multipart bodies whose boundary is generated.
func WithHeader(key, value string) Option {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Set(key, value)
	}
}

// WithRawResponse skips JSON parsing of a successful response body.
func WithRawResponse() Option {
	return func(o *requestOptions) {
		o.raw = true
	}
}

// WithPublicBearer attaches the bearer token to a public call when one exists.
func WithPublicBearer() Option {
	return func(o *requestOptions) {
		o.publicBearer = true
	}
}

func applyOptions(opts []Option) requestOptions {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
