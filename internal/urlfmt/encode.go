// Package urlfmt builds the hand-assembled query strings and image URLs the
// upstream API expects.
package urlfmt

import (
	"net/url"
	"strings"
)

// componentUnescapes undoes url.QueryEscape for the characters that
// encodeURIComponent leaves alone.
var componentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent percent-encodes s the way browsers encode a single URI
// component: spaces become %20 and only A-Z a-z 0-9 - _ . ! ~ * ' ( ) are
// left as is.
func EncodeComponent(s string) string {
	return componentUnescapes.Replace(url.QueryEscape(s))
}

// JoinQuery joins query fragments with '&', skipping empty ones.
func JoinQuery(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "&")
}

// WithQuery appends a query string to path, or returns path unchanged when
// query is empty.
func WithQuery(path, query string) string {
	if query == "" {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&" + query
	}
	return path + "?" + query
}

// ArrayQuery renders values as repeated key[]=value pairs. A single value is
// still emitted as one pair; no values yields "".
func ArrayQuery(values []string, key string) string {
	if len(values) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(values))
	for _, v := range values {
		pairs = append(pairs, key+"[]="+EncodeComponent(v))
	}
	return strings.Join(pairs, "&")
}

// QueryString renders p as k1=v1&k2=v2 in insertion order. Keys carrying
// several values are rendered once, with the values joined by commas.
func QueryString(p *Params) string {
	if p == nil {
		return ""
	}
	pairs := make([]string, 0, p.Len())
	for _, k := range p.keys {
		pairs = append(pairs, EncodeComponent(k)+"="+EncodeComponent(strings.Join(p.values[k], ",")))
	}
	return strings.Join(pairs, "&")
}
