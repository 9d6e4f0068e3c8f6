package trace

import "net/http"

// RequestFromHTTP captures the metadata of r. Server-side requests carry a
// relative URL, so the absolute URI is rebuilt from Host and the TLS state.
// The body is never read.
func RequestFromHTTP(r *http.Request) Request {
	u := *r.URL
	if !u.IsAbs() {
		u.Scheme = "http"
		if r.TLS != nil {
			u.Scheme = "https"
		}
		if u.Host == "" {
			u.Host = r.Host
		}
	}

	var opts []RequestOption
	if r.RemoteAddr != "" {
		opts = append(opts, WithRemoteAddress(r.RemoteAddr))
	}
	return NewRequest(r.Method, u.String(), HeadersFrom(r.Header), opts...)
}

// ResponseFromHTTP captures the status and headers of resp.
func ResponseFromHTTP(resp *http.Response) Response {
	return NewResponse(resp.StatusCode, HeadersFrom(resp.Header))
}
