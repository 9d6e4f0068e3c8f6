package trace

import (
	"net/url"
	"time"
)

// Record is a snapshot of one completed HTTP exchange. Optional attributes are
// pointers; nil means the value is unknown and the key is left out when encoded.
type Record struct {
	Timestamp time.Time
	Principal *Principal
	Session   *Session
	Request   Request
	Response  Response
	// TimeTaken is the elapsed processing time in milliseconds.
	TimeTaken *int64
}

// Principal identifies the authenticated caller.
type Principal struct {
	Name string
}

// Session identifies the HTTP session the exchange belonged to.
type Session struct {
	ID string
}

// Request describes the request side of an exchange. URI holds the target
// exactly as captured so that it encodes back to the same text.
type Request struct {
	Method        string
	URI           string
	Headers       Headers
	RemoteAddress *string
}

type Response struct {
	Status  int
	Headers Headers
}

// RecordOption sets an optional attribute on a Record.
type RecordOption func(*Record)

func WithPrincipal(name string) RecordOption {
	return func(r *Record) { r.Principal = &Principal{Name: name} }
}

func WithSession(id string) RecordOption {
	return func(r *Record) { r.Session = &Session{ID: id} }
}

// WithTimeTaken records d at millisecond resolution.
func WithTimeTaken(d time.Duration) RecordOption {
	return WithTimeTakenMillis(d.Milliseconds())
}

func WithTimeTakenMillis(ms int64) RecordOption {
	return func(r *Record) { r.TimeTaken = &ms }
}

// NewRecord builds a Record. The timestamp is normalized to UTC and truncated
// to milliseconds, the precision of the wire format.
func NewRecord(ts time.Time, req Request, resp Response, opts ...RecordOption) Record {
	r := Record{
		Timestamp: normalizeTime(ts),
		Request:   req,
		Response:  resp,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// RequestOption sets an optional attribute on a Request.
type RequestOption func(*Request)

func WithRemoteAddress(addr string) RequestOption {
	return func(r *Request) { r.RemoteAddress = &addr }
}

func NewRequest(method, uri string, headers Headers, opts ...RequestOption) Request {
	r := Request{
		Method:  method,
		URI:     uri,
		Headers: headers,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// URL parses the request URI.
func (r Request) URL() (*url.URL, error) {
	return url.Parse(r.URI)
}

func NewResponse(status int, headers Headers) Response {
	return Response{Status: status, Headers: headers}
}

// Equal reports whether r and o describe the same exchange. Header names are
// compared case-sensitively; their order is ignored.
func (r Record) Equal(o Record) bool {
	if !r.Timestamp.Equal(o.Timestamp) {
		return false
	}
	if !equalPtr(r.Principal, o.Principal) || !equalPtr(r.Session, o.Session) || !equalPtr(r.TimeTaken, o.TimeTaken) {
		return false
	}
	return r.Request.Equal(o.Request) && r.Response.Equal(o.Response)
}

func (r Request) Equal(o Request) bool {
	if r.Method != o.Method || r.URI != o.URI {
		return false
	}
	return equalPtr(r.RemoteAddress, o.RemoteAddress) && r.Headers.Equal(o.Headers)
}

func (r Response) Equal(o Response) bool {
	return r.Status == o.Status && r.Headers.Equal(o.Headers)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
