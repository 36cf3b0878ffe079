package pathcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Request is the view of an incoming request a key is composed from.
//
// Header lookups are case-insensitive and HeaderKeys returns lower-cased
// names. The *Keys methods may return keys in any order.
type Request interface {
	Method() string
	Path() string
	Header(key string) string
	HeaderKeys() []string
	Query(key string) string
	QueryKeys() []string
	Form(key string) string
	FormKeys() []string

	// JSON returns the body decoded as a JSON object. It fails when the body
	// is empty or is not an object.
	JSON() (map[string]any, error)
}

// MaxBodyBytes bounds how much of a request body FromHTTP buffers.
const MaxBodyBytes = 1 << 20

var errNotObject = errors.New("request body is not a JSON object")

// FromHTTP adapts an *http.Request. The body is buffered on first use and
// restored on r, so handlers further down the chain can still read it.
func FromHTTP(r *http.Request) Request {
	return &httpRequest{r: r}
}

type httpRequest struct {
	r *http.Request

	once    sync.Once
	body    []byte
	bodyErr error
	form    url.Values
}

func (h *httpRequest) load() {
	h.once.Do(func() {
		h.form = url.Values{}
		if h.r.Body == nil || h.r.Body == http.NoBody {
			return
		}
		data, err := io.ReadAll(io.LimitReader(h.r.Body, MaxBodyBytes+1))
		_ = h.r.Body.Close()
		h.r.Body = io.NopCloser(bytes.NewReader(data))
		if err != nil {
			h.bodyErr = err
			return
		}
		if len(data) > MaxBodyBytes {
			h.bodyErr = fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
			return
		}
		h.body = data

		mt, _, _ := mime.ParseMediaType(h.r.Header.Get("Content-Type"))
		if mt == "application/x-www-form-urlencoded" {
			if form, err := url.ParseQuery(string(data)); err == nil {
				h.form = form
			}
		}
	})
}

func (h *httpRequest) Method() string { return h.r.Method }
func (h *httpRequest) Path() string   { return h.r.URL.Path }

func (h *httpRequest) Header(key string) string {
	return h.r.Header.Get(key)
}

func (h *httpRequest) HeaderKeys() []string {
	keys := make([]string, 0, len(h.r.Header))
	for k := range h.r.Header {
		keys = append(keys, strings.ToLower(k))
	}
	return keys
}

func (h *httpRequest) Query(key string) string {
	return h.r.URL.Query().Get(key)
}

func (h *httpRequest) QueryKeys() []string {
	return mapKeys(h.r.URL.Query())
}

func (h *httpRequest) Form(key string) string {
	h.load()
	return h.form.Get(key)
}

func (h *httpRequest) FormKeys() []string {
	h.load()
	return mapKeys(h.form)
}

func (h *httpRequest) JSON() (map[string]any, error) {
	h.load()
	if h.bodyErr != nil {
		return nil, h.bodyErr
	}
	return decodeObject(h.body)
}

func decodeObject(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errNotObject
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

func mapKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	return keys
}

// RequestData is a request described by plain values. It is useful outside
// net/http and in tests.
type RequestData struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Form    map[string]string
	Body    []byte
}

// NewRequest returns a Request backed by d.
func NewRequest(d RequestData) Request {
	headers := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		headers[strings.ToLower(k)] = v
	}
	return &staticRequest{data: d, headers: headers}
}

type staticRequest struct {
	data    RequestData
	headers map[string]string
}

func (s *staticRequest) Method() string { return s.data.Method }
func (s *staticRequest) Path() string   { return s.data.Path }

func (s *staticRequest) Header(key string) string {
	return s.headers[strings.ToLower(key)]
}

func (s *staticRequest) HeaderKeys() []string    { return sortedKeys(s.headers) }
func (s *staticRequest) Query(key string) string { return s.data.Query[key] }
func (s *staticRequest) QueryKeys() []string     { return sortedKeys(s.data.Query) }
func (s *staticRequest) Form(key string) string  { return s.data.Form[key] }
func (s *staticRequest) FormKeys() []string      { return sortedKeys(s.data.Form) }

func (s *staticRequest) JSON() (map[string]any, error) {
	return decodeObject(s.data.Body)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
