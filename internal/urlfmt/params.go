package urlfmt

import (
	"fmt"
	"net/url"
	"strings"
)

// Params is an ordered multi-valued parameter set. Unlike url.Values it
// remembers the order in which keys first appeared, so re-serialized query
// strings keep the caller's ordering.
type Params struct {
	keys   []string
	values map[string][]string
}

// NewParams returns an empty parameter set.
func NewParams() *Params {
	return &Params{values: make(map[string][]string)}
}

// ParseParams parses a raw query string. Bracketed array keys ("extras[]")
// are folded into their bare name, so "extras[]=a&extras[]=b" and
// "extras=a&extras=b" both produce extras=[a b].
func ParseParams(rawQuery string) (*Params, error) {
	p := NewParams()
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("parse query key %q: %w", rawKey, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("parse query value for %q: %w", key, err)
		}
		key = strings.TrimSuffix(key, "[]")
		if key == "" {
			continue
		}
		p.Add(key, value)
	}
	return p, nil
}

// Add appends value to key, registering key if it is new.
func (p *Params) Add(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
}

// Set replaces every value of key. The key keeps its original position.
func (p *Params) Set(key string, values ...string) {
	if len(values) == 0 {
		p.Del(key)
		return
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append([]string(nil), values...)
}

// Del removes key.
func (p *Params) Del(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
			break
		}
	}
}

// Has reports whether key is present.
func (p *Params) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Get returns the first value of key, or "".
func (p *Params) Get(key string) string {
	if vs := p.values[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Values returns every value of key.
func (p *Params) Values(key string) []string {
	return p.values[key]
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Len returns the number of distinct keys.
func (p *Params) Len() int {
	return len(p.keys)
}

// Pick returns a new set holding only the listed keys that are present, in
// the order they are listed.
func (p *Params) Pick(keys ...string) *Params {
	out := NewParams()
	for _, k := range keys {
		if vs, ok := p.values[k]; ok {
			out.Set(k, vs...)
		}
	}
	return out
}

// Clone returns a deep copy of p.
func (p *Params) Clone() *Params {
	return p.Pick(p.keys...)
}

// Encode renders p the way QueryString does.
func (p *Params) Encode() string {
	return QueryString(p)
}

// EncodeRepeated renders p with multi-valued keys expanded into key[]=value
// pairs, the array format the upstream API accepts for separately passed
// parameters.
func (p *Params) EncodeRepeated() string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		vs := p.values[k]
		if len(vs) > 1 {
			parts = append(parts, ArrayQuery(vs, EncodeComponent(k)))
			continue
		}
		parts = append(parts, EncodeComponent(k)+"="+EncodeComponent(vs[0]))
	}
	return JoinQuery(parts...)
}
