package trace

import (
	"bytes"
	"net/http"
	"slices"
	"sort"
)

// Headers is an ordered multimap of header names to values. Names keep the
// order they were first added in and are stored verbatim (no canonicalization).
// The zero value is an empty set ready to use.
type Headers struct {
	names  []string
	values map[string][]string
}

// HeadersFrom copies m into a Headers value. Names are added in sorted order
// so the result does not depend on map iteration.
func HeadersFrom(m map[string][]string) Headers {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var h Headers
	for _, name := range names {
		h.Add(name, m[name]...)
	}
	return h
}

// Add appends values under name. Adding no values is a no-op, so a name that
// is present always has at least one value.
func (h *Headers) Add(name string, values ...string) {
	if len(values) == 0 {
		return
	}
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	existing, ok := h.values[name]
	if !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = append(existing, values...)
}

// Values returns a copy of the values stored under name.
func (h Headers) Values(name string) []string {
	return slices.Clone(h.values[name])
}

// Names returns the header names in insertion order.
func (h Headers) Names() []string {
	return slices.Clone(h.names)
}

func (h Headers) Len() int {
	return len(h.names)
}

// Equal compares name sets and per-name value sequences. Name order is not
// significant.
func (h Headers) Equal(o Headers) bool {
	if len(h.names) != len(o.names) {
		return false
	}
	for name, vals := range h.values {
		other, ok := o.values[name]
		if !ok || !slices.Equal(vals, other) {
			return false
		}
	}
	return true
}

// HTTPHeader converts h to an http.Header without canonicalizing names.
func (h Headers) HTTPHeader() http.Header {
	out := make(http.Header, len(h.names))
	for _, name := range h.names {
		out[name] = slices.Clone(h.values[name])
	}
	return out
}

// MarshalJSON writes the headers as an object of string arrays, in insertion order.
func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	h.writeJSON(&buf)
	return buf.Bytes(), nil
}

func (h Headers) writeJSON(buf *bytes.Buffer) {
	buf.WriteByte('{')
	for i, name := range h.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(buf, name)
		buf.WriteString(":[")
		for j, v := range h.values[name] {
			if j > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, v)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
}
