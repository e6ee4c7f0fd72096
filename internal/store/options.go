package store

import (
	"maps"
	"net/url"
	"time"
)

// FetchOptions describe the request a store issues.
type FetchOptions struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Token  string
	// LocalLifetime is how long fetched data is served from memory before a
	// new request is made. Zero always fetches.
	LocalLifetime time.Duration
}

// FetchOption overrides part of a store's configured FetchOptions for one call.
type FetchOption func(*FetchOptions)

// WithMethod overrides the HTTP method.
func WithMethod(method string) FetchOption {
	return func(o *FetchOptions) {
		o.Method = method
	}
}

// WithPath overrides the request path.
func WithPath(path string) FetchOption {
	return func(o *FetchOptions) {
		o.Path = path
	}
}

// WithQuery sets one query parameter.
func WithQuery(key, value string) FetchOption {
	return func(o *FetchOptions) {
		if o.Query == nil {
			o.Query = url.Values{}
		}
		o.Query.Set(key, value)
	}
}

// WithBody sets the JSON request body.
func WithBody(body any) FetchOption {
	return func(o *FetchOptions) {
		o.Body = body
	}
}

// WithToken authenticates the request with a bearer token.
func WithToken(token string) FetchOption {
	return func(o *FetchOptions) {
		o.Token = token
	}
}

// WithLocalLifetime overrides the local cache lifetime; zero forces a fetch.
func WithLocalLifetime(d time.Duration) FetchOption {
	return func(o *FetchOptions) {
		o.LocalLifetime = d
	}
}

func (o FetchOptions) merge(overrides []FetchOption) FetchOptions {
	out := o
	if o.Query != nil {
		out.Query = url.Values(maps.Clone(map[string][]string(o.Query)))
	}
	for _, apply := range overrides {
		if apply != nil {
			apply(&out)
		}
	}
	return out
}
