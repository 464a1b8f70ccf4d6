// Package executable defines the contract every schema taking part in the
// merged graph fulfils, whether it's proxied to a remote service or resolved
// in process.
package executable

import (
	"context"

	"github.com/buildbuildio/mosaic/format"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/vektah/gqlparser/v2/ast"
)

// Schema is a graphql schema able to execute operations against itself
type Schema interface {
	// Name identifies the schema in owner maps and diagnostics
	Name() string
	Schema() *ast.Schema
	// Execute runs the request and returns its {data, errors} envelope.
	// A returned error means the whole request failed.
	Execute(ctx context.Context, req *Request) (*requests.Response, error)
}

// Subscriber is implemented by schemas able to serve subscriptions.
// Subscribe owns resCh and closes it once the stream ends or closeCh is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, req *Request, closeCh <-chan struct{}, resCh chan *requests.Response) error
}

// Request is a part of an incoming operation routed to a single schema
type Request struct {
	Operation *format.Operation
	// Variables holds only the values referenced by Operation
	Variables map[string]interface{}

	query string
}

// NewRequest returns request for op keeping only variables op refers to
func NewRequest(op *format.Operation, variables map[string]interface{}) *Request {
	vars := make(map[string]interface{})
	for _, def := range op.VariablesInUse() {
		if v, ok := variables[def.Variable]; ok {
			vars[def.Variable] = v
		}
	}

	return &Request{
		Operation: op,
		Variables: vars,
	}
}

// Query returns the printed document of the request
func (r *Request) Query() string {
	if r.query == "" {
		r.query = format.FormatOperation(r.Operation)
	}
	return r.query
}

// OperationName returns nil for anonymous operations
func (r *Request) OperationName() *string {
	if r.Operation.Name == "" {
		return nil
	}
	name := r.Operation.Name
	return &name
}

// ToRequest converts r into the wire request
func (r *Request) ToRequest() *requests.Request {
	return &requests.Request{
		Query:         r.Query(),
		Variables:     r.Variables,
		OperationName: r.OperationName(),
	}
}
