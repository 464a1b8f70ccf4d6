// Package graphqltest provides a fake graphql service for tests. It answers
// introspection from its SDL and delegates other operations to a handler.
package graphqltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/introspection"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// HandlerFunc resolves a validated non introspection request
type HandlerFunc func(req *requests.Request) *requests.Response

// Service is a running fake graphql service
type Service struct {
	*httptest.Server

	schema  *ast.Schema
	handler HandlerFunc

	calls int32

	mu       sync.Mutex
	received []*requests.Request
}

// NewService starts a service with the given SDL
func NewService(sdl string, handler HandlerFunc) *Service {
	s := &Service{
		schema:  gqlparser.MustLoadSchema(&ast.Source{Name: "service", Input: sdl}),
		handler: handler,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// StaticData returns a handler answering every request with data
func StaticData(data map[string]interface{}) HandlerFunc {
	return func(*requests.Request) *requests.Response {
		return &requests.Response{Data: data}
	}
}

// Calls returns number of non introspection requests served
func (s *Service) Calls() int {
	return int(atomic.LoadInt32(&s.calls))
}

// Received returns non introspection requests served so far
func (s *Service) Received() []*requests.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*requests.Request(nil), s.received...)
}

func (s *Service) serveHTTP(w http.ResponseWriter, r *http.Request) {
	parsed, err := requests.Parse(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resps := make([]*requests.Response, 0, len(parsed.Requests))
	for _, req := range parsed.Requests {
		resps = append(resps, s.execute(req))
	}

	w.Header().Set("Content-Type", "application/json")
	if parsed.Batched {
		_ = json.NewEncoder(w).Encode(resps)
		return
	}
	_ = json.NewEncoder(w).Encode(resps[0])
}

func (s *Service) execute(req *requests.Request) *requests.Response {
	var opName string
	if req.OperationName != nil {
		opName = *req.OperationName
	}

	doc, gerrs := gqlparser.LoadQuery(s.schema, req.Query)
	if len(gerrs) > 0 {
		return &requests.Response{Errors: gqlerrors.FormatError(gerrs)}
	}

	op := doc.Operations.ForName(opName)
	if op == nil {
		return &requests.Response{Errors: gqlerrors.ErrorList{{Message: "operation not found"}}}
	}

	resolver := &introspection.Resolver{Schema: s.schema, Variables: req.Variables}
	if data := resolver.Resolve(op.SelectionSet); len(data) > 0 {
		return &requests.Response{Data: data}
	}

	atomic.AddInt32(&s.calls, 1)
	s.mu.Lock()
	s.received = append(s.received, req)
	s.mu.Unlock()

	return s.handler(req)
}
