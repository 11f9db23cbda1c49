package transport

import (
	"math/rand/v2"
	"net/http"
)

// DefaultUserAgents is the browser identity pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
}

// Identity decorates outbound requests so they look like ordinary browser
// navigation. It is an anti-blocking measure, not authentication.
type Identity interface {
	Apply(h http.Header)
}

// RandomIdentity picks a user agent uniformly from Agents on every request.
type RandomIdentity struct {
	Agents  []string
	Referer string
	Extra   map[string]string
}

var _ Identity = (*RandomIdentity)(nil)

// NewRandomIdentity falls back to DefaultUserAgents when agents is empty.
func NewRandomIdentity(agents []string, referer string) *RandomIdentity {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return &RandomIdentity{Agents: agents, Referer: referer}
}

// WithHeaders returns a copy that also sets the given headers.
func (r *RandomIdentity) WithHeaders(extra map[string]string) *RandomIdentity {
	merged := make(map[string]string, len(r.Extra)+len(extra))
	for k, v := range r.Extra {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return &RandomIdentity{Agents: r.Agents, Referer: r.Referer, Extra: merged}
}

// Apply implements Identity.
func (r *RandomIdentity) Apply(h http.Header) {
	if len(r.Agents) > 0 {
		h.Set("User-Agent", r.Agents[rand.IntN(len(r.Agents))])
	}
	if r.Referer != "" {
		h.Set("Referer", r.Referer)
	}
	for k, v := range r.Extra {
		h.Set(k, v)
	}
}

// StaticIdentity always sets the same user agent.
type StaticIdentity string

// Apply implements Identity.
func (s StaticIdentity) Apply(h http.Header) {
	if s != "" {
		h.Set("User-Agent", string(s))
	}
}
