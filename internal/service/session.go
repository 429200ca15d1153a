package service

import (
	"strings"

	"ele-proxy-go/internal/config"
)

// CookieRewriter re-scopes upstream session cookies to the proxy's own
// domain by dropping the upstream Domain attribute.
type CookieRewriter struct {
	domain string
}

// NewCookieRewriter creates a CookieRewriter for the configured upstream cookie domain.
func NewCookieRewriter(cfg *config.Config) *CookieRewriter {
	return &CookieRewriter{domain: cfg.Session.CookieDomain}
}

// Rewrite blanks every "Domain=<domain>" attribute (case-insensitive, leading
// dot optional) and trims trailing whitespace, so
// "SESSION=abc; Domain=.ele.me" becomes "SESSION=abc;".
func (r *CookieRewriter) Rewrite(cookies []string) []string {
	if cookies == nil {
		return nil
	}
	want := strings.TrimPrefix(r.domain, ".")
	if want == "" {
		return append([]string(nil), cookies...)
	}
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		attrs := strings.Split(c, ";")
		for i, attr := range attrs {
			name, value, ok := strings.Cut(strings.TrimSpace(attr), "=")
			if ok && strings.EqualFold(name, "domain") && strings.EqualFold(strings.TrimPrefix(value, "."), want) {
				attrs[i] = ""
			}
		}
		out = append(out, strings.TrimRight(strings.Join(attrs, ";"), " \t"))
	}
	return out
}
