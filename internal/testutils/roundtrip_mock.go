// Package testutils provides test doubles for the HTTP-layer collaborator
// boundary, so meta-request and scheduler tests can run without a real
// object-store endpoint.
package testutils

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// ScriptedResponse is one canned response a RoundTripMock hands back for
// a matching request.
type ScriptedResponse struct {
	Status  int
	Headers map[string]string
	Body    string
	Err     error
}

// RoundTripMock is an http.RoundTripper test double keyed by a matcher
// function, so a test can script "the Nth CreateMultipartUpload
// succeeds" or "PUT for part 3 returns 500" without standing up a
// listener.
type RoundTripMock struct {
	mu       sync.Mutex
	handlers []roundTripHandler
	requests []*http.Request
}

type roundTripHandler struct {
	match func(*http.Request) bool
	resp  ScriptedResponse
	left  int // -1 means unlimited
}

// NewRoundTripMock creates an empty mock; use On to register responses.
func NewRoundTripMock() *RoundTripMock {
	return &RoundTripMock{}
}

// On registers resp to be returned the next `times` requests matching
// match (times <= 0 means unlimited). Handlers are tried in registration
// order; the first whose match function returns true and that still has
// uses remaining wins.
func (m *RoundTripMock) On(match func(*http.Request) bool, resp ScriptedResponse, times int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if times <= 0 {
		times = -1
	}
	m.handlers = append(m.handlers, roundTripHandler{match: match, resp: resp, left: times})
}

// Requests returns every request observed so far, in order.
func (m *RoundTripMock) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*http.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *RoundTripMock) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var chosen *roundTripHandler
	for i := range m.handlers {
		h := &m.handlers[i]
		if h.left == 0 {
			continue
		}
		if h.match(req) {
			chosen = h
			break
		}
	}
	if chosen != nil && chosen.left > 0 {
		chosen.left--
	}
	m.mu.Unlock()

	if chosen == nil {
		return &http.Response{
			StatusCode: 404,
			Body:       io.NopCloser(bytes.NewBufferString("no scripted response matched")),
			Header:     http.Header{},
		}, nil
	}
	if chosen.resp.Err != nil {
		return nil, chosen.resp.Err
	}

	header := http.Header{}
	for k, v := range chosen.resp.Headers {
		header.Set(k, v)
	}
	return &http.Response{
		StatusCode: chosen.resp.Status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(chosen.resp.Body)),
	}, nil
}

// MatchQuery returns a matcher for method and the presence of a query
// parameter, which is how the five multi-part endpoints are
// distinguished on the wire (they all share a path).
func MatchQuery(method, queryKey string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if r.Method != method {
			return false
		}
		_, ok := r.URL.Query()[queryKey]
		return ok
	}
}
