package restproxy

import (
	"iter"
	"net/url"
	"strings"
)

// Values is an ordered set of name/value pairs. Names keep the position of
// their first insertion; setting an existing name replaces its value in place.
// The zero value is empty and ready to use.
type Values struct {
	names []string
	index map[string]int
	vals  []string
}

// Set records value under name.
func (v *Values) Set(name, value string) {
	if i, ok := v.index[name]; ok {
		v.vals[i] = value
		return
	}
	if v.index == nil {
		v.index = make(map[string]int)
	}
	v.index[name] = len(v.names)
	v.names = append(v.names, name)
	v.vals = append(v.vals, value)
}

// Get returns the value recorded under name.
func (v *Values) Get(name string) (string, bool) {
	if v == nil {
		return "", false
	}
	i, ok := v.index[name]
	if !ok {
		return "", false
	}
	return v.vals[i], true
}

// Len returns the number of names.
func (v *Values) Len() int {
	if v == nil {
		return 0
	}
	return len(v.names)
}

// All iterates over the pairs in insertion order.
func (v *Values) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if v == nil {
			return
		}
		for i, name := range v.names {
			if !yield(name, v.vals[i]) {
				return
			}
		}
	}
}

// Map returns the pairs as an unordered map.
func (v *Values) Map() map[string]string {
	m := make(map[string]string, v.Len())
	for name, value := range v.All() {
		m[name] = value
	}
	return m
}

// Clone returns an independent copy.
func (v *Values) Clone() *Values {
	c := &Values{}
	for name, value := range v.All() {
		c.Set(name, value)
	}
	return c
}

// Encode renders the pairs as "name=value" joined by "&", in insertion order,
// each side escaped with url.QueryEscape.
func (v *Values) Encode() string {
	if v.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for name, value := range v.All() {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(value))
	}
	return b.String()
}
