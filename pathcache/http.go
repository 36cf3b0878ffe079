package pathcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonwraymond/pathcache/observe"
)

// cachedResponse is the stored form of an HTTP response.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body"`
}

// uncacheableError carries a response that must be sent but not stored.
type uncacheableError struct {
	resp *cachedResponse
}

func (e *uncacheableError) Error() string {
	return fmt.Sprintf("response status %d is not cacheable", e.resp.Status)
}

// Middleware caches the responses of next under keys composed with spec.
// Only 2xx responses are stored; anything else is passed through and
// recomputed on the next request. Set-Cookie headers are dropped from
// cacheable responses.
func (p *PathCache) Middleware(spec KeySpec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			compute := func(ctx context.Context) ([]byte, error) {
				rec := newResponseRecorder()
				next.ServeHTTP(rec, r.WithContext(ctx))
				resp := rec.result()
				if resp.Status < 200 || resp.Status > 299 {
					return nil, &uncacheableError{resp: resp}
				}
				resp.Header.Del("Set-Cookie")
				return json.Marshal(resp)
			}

			data, err := p.Execute(r.Context(), FromHTTP(r), spec, compute)

			var unc *uncacheableError
			switch {
			case errors.As(err, &unc):
				writeResponse(w, unc.resp)
			case err != nil:
				p.logger.Error(r.Context(), "cached handler failed", observe.F("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			default:
				var resp cachedResponse
				if err := json.Unmarshal(data, &resp); err != nil {
					p.logger.Error(r.Context(), "unreadable cached response", observe.F("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				writeResponse(w, &resp)
			}
		})
	}
}

func writeResponse(w http.ResponseWriter, resp *cachedResponse) {
	h := w.Header()
	for k, vs := range resp.Header {
		h[k] = append([]string(nil), vs...)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}

// responseRecorder buffers a handler's response.
type responseRecorder struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseRecorder() *responseRecorder {
	return &responseRecorder{header: http.Header{}}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(b)
}

func (r *responseRecorder) result() *cachedResponse {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	return &cachedResponse{
		Status: status,
		Header: r.header.Clone(),
		Body:   r.body.Bytes(),
	}
}
