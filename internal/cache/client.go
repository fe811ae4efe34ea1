package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/sorenmh/pushdash/internal/gql"
	"github.com/sorenmh/pushdash/internal/link"
)

// FetchPolicy selects how a query uses the store
type FetchPolicy string

const (
	// CacheFirst answers from the store when every selected field is
	// present and goes to the network otherwise
	CacheFirst FetchPolicy = "cache-first"
	// NetworkOnly always executes the query and refreshes the store
	NetworkOnly FetchPolicy = "network-only"
	// CacheOnly never touches the network
	CacheOnly FetchPolicy = "cache-only"
)

// ErrCacheMiss is returned by CacheOnly queries the store cannot answer
var ErrCacheMiss = errors.New("cache miss")

// ParseFetchPolicy validates a policy name. Empty selects CacheFirst.
func ParseFetchPolicy(s string) (FetchPolicy, error) {
	switch p := FetchPolicy(s); p {
	case "":
		return CacheFirst, nil
	case CacheFirst, NetworkOnly, CacheOnly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fetch policy %q (use cache-first, network-only or cache-only)", s)
	}
}

// Request is one query invocation
type Request struct {
	Document  *gql.Document
	Operation string
	Variables map[string]any
	Policy    FetchPolicy
}

// Client sits in front of a link.Handler. Identical concurrent requests
// share one execution; successful results are normalized into the store.
type Client struct {
	next   link.Handler
	store  *Store
	group  singleflight.Group
	logger *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithStore replaces the default store
func WithStore(s *Store) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client executing through next
func New(next link.Handler, opts ...Option) *Client {
	c := &Client{
		next:   next,
		store:  NewStore(nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store
func (c *Client) Store() *Store {
	return c.store
}

// Reset empties the store. In-flight queries still write their results.
func (c *Client) Reset() {
	c.store.Reset()
}

// Query runs req according to its fetch policy. The returned result is
// owned by the caller.
func (c *Client) Query(ctx context.Context, req Request) (*link.Result, error) {
	if req.Document == nil {
		return nil, fmt.Errorf("query has no document")
	}
	def, err := req.Document.Operation(req.Operation)
	if err != nil {
		return nil, err
	}
	vars := req.Variables
	if vars == nil {
		vars = map[string]any{}
	}

	policy := req.Policy
	if policy == "" {
		policy = CacheFirst
	}

	if policy != NetworkOnly {
		if res, ok := c.read(def, vars); ok {
			c.logger.Debug("cache hit", "operation", def.Name)
			return res, nil
		}
		if policy == CacheOnly {
			return nil, fmt.Errorf("%s: %w", def.Name, ErrCacheMiss)
		}
	}

	// The shared execution outlives any single caller; each caller stops
	// waiting when its own context ends.
	execCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(requestKey(req.Document, def.Name, vars), func() (any, error) {
		op := link.NewOperation(req.Document, def.Name, vars)
		res, err := c.next.Execute(execCtx, op)
		if err != nil {
			return nil, err
		}
		if len(res.Errors) == 0 {
			c.write(def, vars, res)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			c.logger.Debug("query shared with in-flight request", "operation", def.Name)
		}
		return cloneResult(r.Val.(*link.Result)), nil
	}
}

func (c *Client) read(def *gql.Operation, vars map[string]any) (*link.Result, bool) {
	data := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		v, ok := c.store.Read(FieldKey(f, vars), f.Selections, vars)
		if !ok {
			return nil, false
		}
		data[f.ResultKey()] = v
	}
	return &link.Result{Data: data}, true
}

func (c *Client) write(def *gql.Operation, vars map[string]any, res *link.Result) {
	for _, f := range def.Fields {
		v, ok := res.Data[f.ResultKey()]
		if !ok {
			continue
		}
		c.store.Write(FieldKey(f, vars), f.Selections, vars, v)
	}
}

// requestKey identifies identical requests: same document, operation and
// variables
func requestKey(doc *gql.Document, name string, vars map[string]any) string {
	b, err := json.Marshal(vars)
	if err != nil {
		b = []byte(fmt.Sprint(vars))
	}
	return name + "\x00" + doc.Source() + "\x00" + string(b)
}

func cloneResult(r *link.Result) *link.Result {
	out := &link.Result{Errors: slices.Clone(r.Errors)}
	if r.Data != nil {
		out.Data = cloneValue(r.Data).(map[string]any)
	}
	return out
}
