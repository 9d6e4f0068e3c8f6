package trace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fastjson"
)

// TimestampLayout is the wire format of Record.Timestamp: UTC, fixed
// millisecond precision, literal Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Field order of these structs is the canonical key order.
type wireRecord struct {
	Timestamp string         `json:"timestamp"`
	Principal *wirePrincipal `json:"principal,omitempty"`
	Session   *wireSession   `json:"session,omitempty"`
	Request   wireRequest    `json:"request"`
	Response  wireResponse   `json:"response"`
	TimeTaken *int64         `json:"timeTaken,omitempty"`
}

type wirePrincipal struct {
	Name string `json:"name"`
}

type wireSession struct {
	ID string `json:"id"`
}

type wireRequest struct {
	Method        string  `json:"method"`
	URI           string  `json:"uri"`
	Headers       Headers `json:"headers"`
	RemoteAddress *string `json:"remoteAddress,omitempty"`
}

type wireResponse struct {
	Status  int     `json:"status"`
	Headers Headers `json:"headers"`
}

// Marshal encodes r in canonical form: compact JSON, fixed key order, absent
// optional fields omitted, no HTML escaping. Timestamps must fall in years
// 0000 through 9999, the range ISO-8601 expresses with four digits.
func Marshal(r Record) ([]byte, error) {
	if y := r.Timestamp.UTC().Year(); y < 0 || y > 9999 {
		return nil, fmt.Errorf("encode trace record: year %d: %w", y, ErrTimestampOutOfRange)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.wire()); err != nil {
		return nil, fmt.Errorf("encode trace record: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// MarshalJSON lets a Record be embedded in other JSON documents. Note that
// json.Marshal escapes <, > and & in the result; use Marshal for the exact
// canonical bytes.
func (r Record) MarshalJSON() ([]byte, error) {
	return Marshal(r)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	rec, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

func (r Record) wire() wireRecord {
	w := wireRecord{
		Timestamp: r.Timestamp.UTC().Format(TimestampLayout),
		Request: wireRequest{
			Method:        r.Request.Method,
			URI:           r.Request.URI,
			Headers:       r.Request.Headers,
			RemoteAddress: r.Request.RemoteAddress,
		},
		Response: wireResponse{
			Status:  r.Response.Status,
			Headers: r.Response.Headers,
		},
		TimeTaken: r.TimeTaken,
	}
	if r.Principal != nil {
		w.Principal = &wirePrincipal{Name: r.Principal.Name}
	}
	if r.Session != nil {
		w.Session = &wireSession{ID: r.Session.ID}
	}
	return w
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Truncate(buf.Len() - 1)
}

var parserPool fastjson.ParserPool

// Unmarshal decodes a record from JSON. Keys may appear in any order and
// unknown keys are ignored. Every failure matches ErrMalformedRecord.
func Unmarshal(data []byte) (Record, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return Record{}, malformed("", "invalid JSON", err)
	}
	return decodeRecord(v)
}

func decodeRecord(v *fastjson.Value) (Record, error) {
	obj, err := asObject(v, "")
	if err != nil {
		return Record{}, err
	}

	var r Record

	tv, err := requireField(obj, "timestamp", "timestamp")
	if err != nil {
		return Record{}, err
	}
	if r.Timestamp, err = decodeTimestamp(tv); err != nil {
		return Record{}, err
	}

	if pv := field(obj, "principal"); pv != nil {
		po, err := asObject(pv, "principal")
		if err != nil {
			return Record{}, err
		}
		name, err := requireString(po, "name", "principal.name")
		if err != nil {
			return Record{}, err
		}
		r.Principal = &Principal{Name: name}
	}

	if sv := field(obj, "session"); sv != nil {
		so, err := asObject(sv, "session")
		if err != nil {
			return Record{}, err
		}
		id, err := requireString(so, "id", "session.id")
		if err != nil {
			return Record{}, err
		}
		r.Session = &Session{ID: id}
	}

	rv, err := requireField(obj, "request", "request")
	if err != nil {
		return Record{}, err
	}
	if r.Request, err = decodeRequest(rv); err != nil {
		return Record{}, err
	}

	sv, err := requireField(obj, "response", "response")
	if err != nil {
		return Record{}, err
	}
	if r.Response, err = decodeResponse(sv); err != nil {
		return Record{}, err
	}

	if ttv := field(obj, "timeTaken"); ttv != nil {
		ms, err := asInt64(ttv, "timeTaken")
		if err != nil {
			return Record{}, err
		}
		r.TimeTaken = &ms
	}

	return r, nil
}

func decodeTimestamp(v *fastjson.Value) (time.Time, error) {
	s, err := asString(v, "timestamp")
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, malformed("timestamp", "not an ISO-8601 instant", err)
	}
	return normalizeTime(t), nil
}

func decodeRequest(v *fastjson.Value) (Request, error) {
	obj, err := asObject(v, "request")
	if err != nil {
		return Request{}, err
	}

	var r Request
	if r.Method, err = requireString(obj, "method", "request.method"); err != nil {
		return Request{}, err
	}

	if r.URI, err = requireString(obj, "uri", "request.uri"); err != nil {
		return Request{}, err
	}
	if _, err := url.Parse(r.URI); err != nil {
		return Request{}, malformed("request.uri", "invalid URI", err)
	}

	hv, err := requireField(obj, "headers", "request.headers")
	if err != nil {
		return Request{}, err
	}
	if r.Headers, err = decodeHeaders(hv, "request.headers"); err != nil {
		return Request{}, err
	}

	if av := field(obj, "remoteAddress"); av != nil {
		addr, err := asString(av, "request.remoteAddress")
		if err != nil {
			return Request{}, err
		}
		r.RemoteAddress = &addr
	}
	return r, nil
}

func decodeResponse(v *fastjson.Value) (Response, error) {
	obj, err := asObject(v, "response")
	if err != nil {
		return Response{}, err
	}

	var r Response
	stv, err := requireField(obj, "status", "response.status")
	if err != nil {
		return Response{}, err
	}
	status, err := asInt64(stv, "response.status")
	if err != nil {
		return Response{}, err
	}
	r.Status = int(status)

	hv, err := requireField(obj, "headers", "response.headers")
	if err != nil {
		return Response{}, err
	}
	if r.Headers, err = decodeHeaders(hv, "response.headers"); err != nil {
		return Response{}, err
	}
	return r, nil
}

func decodeHeaders(v *fastjson.Value, path string) (Headers, error) {
	obj, err := asObject(v, path)
	if err != nil {
		return Headers{}, err
	}

	var (
		h        Headers
		visitErr error
	)
	obj.Visit(func(key []byte, hv *fastjson.Value) {
		if visitErr != nil {
			return
		}
		name := string(key)
		namePath := path + "." + name
		if hv.Type() != fastjson.TypeArray {
			visitErr = malformed(namePath, fmt.Sprintf("expected array of strings, got %s", hv.Type()), nil)
			return
		}
		items, _ := hv.Array()
		if len(items) == 0 {
			visitErr = malformed(namePath, "header has no values", nil)
			return
		}
		values := make([]string, 0, len(items))
		for i, item := range items {
			s, err := asString(item, fmt.Sprintf("%s[%d]", namePath, i))
			if err != nil {
				visitErr = err
				return
			}
			values = append(values, s)
		}
		h.Add(name, values...)
	})
	if visitErr != nil {
		return Headers{}, visitErr
	}
	return h, nil
}

// field returns the value under key, treating an explicit null as absent.
func field(obj *fastjson.Object, key string) *fastjson.Value {
	v := obj.Get(key)
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil
	}
	return v
}

func requireField(obj *fastjson.Object, key, path string) (*fastjson.Value, error) {
	v := field(obj, key)
	if v == nil {
		return nil, malformed(path, "missing required field", nil)
	}
	return v, nil
}

func requireString(obj *fastjson.Object, key, path string) (string, error) {
	v, err := requireField(obj, key, path)
	if err != nil {
		return "", err
	}
	return asString(v, path)
}

func asObject(v *fastjson.Value, path string) (*fastjson.Object, error) {
	if v.Type() != fastjson.TypeObject {
		return nil, malformed(path, fmt.Sprintf("expected object, got %s", v.Type()), nil)
	}
	obj, _ := v.Object()
	return obj, nil
}

func asString(v *fastjson.Value, path string) (string, error) {
	if v.Type() != fastjson.TypeString {
		return "", malformed(path, fmt.Sprintf("expected string, got %s", v.Type()), nil)
	}
	b, _ := v.StringBytes()
	return string(b), nil
}

func asInt64(v *fastjson.Value, path string) (int64, error) {
	if v.Type() != fastjson.TypeNumber {
		return 0, malformed(path, fmt.Sprintf("expected integer, got %s", v.Type()), nil)
	}
	n, err := v.Int64()
	if err != nil {
		return 0, malformed(path, "expected integer", err)
	}
	return n, nil
}
