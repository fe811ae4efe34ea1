// Package link defines the request pipeline shared by the REST executor,
// the auth interceptor and the cache.
package link

import (
	"context"
	"net/http"
	"sync"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/sorenmh/pushdash/internal/gql"
)

// Operation is one execution of a query. Middleware communicates with the
// executor through its Header and recorded responses.
type Operation struct {
	Document  *gql.Document
	Name      string
	Variables map[string]any
	Header    http.Header

	mu        sync.Mutex
	responses []Response
}

// Response summarizes one underlying HTTP call made while executing an
// operation
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
}

// Result is the outcome of an operation. Field-level failures are collected
// in Errors while the rest of Data stays usable.
type Result struct {
	Data   map[string]any `json:"data"`
	Errors gqlerror.List  `json:"errors,omitempty"`
}

// NewOperation creates an operation with an empty header set
func NewOperation(doc *gql.Document, name string, vars map[string]any) *Operation {
	if vars == nil {
		vars = map[string]any{}
	}
	return &Operation{
		Document:  doc,
		Name:      name,
		Variables: vars,
		Header:    make(http.Header),
	}
}

// Definition returns the operation's descriptor tree
func (o *Operation) Definition() (*gql.Operation, error) {
	return o.Document.Operation(o.Name)
}

// RecordResponse appends an underlying response. Safe for concurrent use.
func (o *Operation) RecordResponse(r Response) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.responses = append(o.responses, r)
}

// Responses returns the responses recorded so far in arrival order
func (o *Operation) Responses() []Response {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Response, len(o.responses))
	copy(out, o.responses)
	return out
}

// Handler executes operations
type Handler interface {
	Execute(ctx context.Context, op *Operation) (*Result, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, op *Operation) (*Result, error)

// Execute calls f(ctx, op)
func (f HandlerFunc) Execute(ctx context.Context, op *Operation) (*Result, error) {
	return f(ctx, op)
}

// Middleware wraps a Handler
type Middleware func(Handler) Handler

// Chain wraps h with the middlewares. The first middleware is the outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
