package rate

import (
	"maps"
	"net/url"
	"strings"
)

// Major parameters are rate limited by Discord independently of the route template.
const (
	ChannelParam = "channel_id"
	GuildParam   = "guild_id"
)

// Params maps path placeholder names to their concrete values.
type Params map[string]string

// Route describes one logical API call. It is immutable once built.
type Route struct {
	method string
	path   string
	params Params
}

// NewRoute creates a route for the given method and path template.
// The template uses {name} placeholders that are filled from params.
func NewRoute(method, path string, params Params) Route {
	return Route{
		method: method,
		path:   path,
		params: maps.Clone(params),
	}
}

// Method returns the HTTP method of the route.
func (r Route) Method() string {
	return r.method
}

// Path returns the unformatted path template.
func (r Route) Path() string {
	return r.path
}

// Param returns the value of a path parameter, or an empty string if unset.
func (r Route) Param(name string) string {
	return r.params[name]
}

// Bucket returns the rate limit bucket key for the route.
// Only major parameters take part in the key so routes that differ in any
// other parameter share a bucket. Missing major parameters leave their slot empty.
func (r Route) Bucket() string {
	var b strings.Builder
	b.Grow(len(r.path) + 42)
	b.WriteString(r.params[ChannelParam])
	b.WriteByte(':')
	b.WriteString(r.params[GuildParam])
	b.WriteByte(':')
	b.WriteString(r.path)
	return b.String()
}

// URL joins the base URL with the path template, substituting each
// placeholder with its percent-escaped value. Placeholders without a
// value are left untouched.
func (r Route) URL(base string) string {
	path := r.path
	for name, value := range r.params {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	return strings.TrimRight(base, "/") + path
}

// String implements fmt.Stringer.
func (r Route) String() string {
	return r.method + " " + r.path
}
