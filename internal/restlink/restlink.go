// Package restlink executes query descriptor trees against a REST API.
package restlink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/sync/errgroup"

	"github.com/sorenmh/pushdash/internal/gql"
	"github.com/sorenmh/pushdash/internal/link"
)

// TypenameField is added to every object that has a known type tag
const TypenameField = "__typename"

const (
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 4
	maxErrorBody       = 512
)

// Link turns operations into HTTP calls. It implements link.Handler.
type Link struct {
	baseURL     string
	client      *http.Client
	logger      *slog.Logger
	typePatch   map[string]string
	concurrency int
}

// Option configures a Link
type Option func(*Link)

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(l *Link) { l.client.Timeout = d }
}

// WithLogger sets the logger used for per-request debug output
func WithLogger(logger *slog.Logger) Option {
	return func(l *Link) { l.logger = logger }
}

// WithTypePatch names the type of nested objects. Keys have the form
// "<ParentType>.<field>", e.g. "Apps.apps" -> "App".
func WithTypePatch(patch map[string]string) Option {
	return func(l *Link) { l.typePatch = maps.Clone(patch) }
}

// WithConcurrency bounds how many list items resolve their nested REST
// fields at the same time
func WithConcurrency(n int) Option {
	return func(l *Link) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// New creates a Link for the API rooted at baseURL
func New(baseURL string, opts ...Option) *Link {
	l := &Link{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: defaultTimeout},
		logger:      slog.Default(),
		typePatch:   map[string]string{},
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// joinURL safely joins the base URL with a resolved path
func (l *Link) joinURL(path string) string {
	return l.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Execute runs every root field of the operation. Transport failures and
// error statuses on root fields fail the whole operation; failures of
// nested REST fields only null that field and are reported in Result.Errors.
func (l *Link) Execute(ctx context.Context, op *link.Operation) (*link.Result, error) {
	def, err := op.Definition()
	if err != nil {
		return nil, err
	}

	ex := &execution{link: l, op: op}
	data := make(map[string]any, len(def.Fields))
	for _, f := range def.Fields {
		key := f.ResultKey()
		v, err := ex.fetch(ctx, f, map[string]any{}, ast.Path{ast.PathName(key)})
		if err != nil {
			if errors.Is(err, ErrMissingExport) {
				ex.addError(ast.Path{ast.PathName(key)}, err)
				data[key] = nil
				continue
			}
			return nil, err
		}
		data[key] = v
	}

	return &link.Result{Data: data, Errors: ex.errors}, nil
}

type execution struct {
	link *Link
	op   *link.Operation

	mu     sync.Mutex
	errors gqlerror.List
}

func (ex *execution) addError(path ast.Path, err error) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.errors = append(ex.errors, gqlerror.WrapPath(path, err))
}

// fetch resolves a REST field: it builds the path from the field arguments
// and the exports in scope, calls the API and projects the response onto
// the field's selections.
func (ex *execution) fetch(ctx context.Context, f *gql.Field, exports map[string]any, path ast.Path) (any, error) {
	args, err := f.Args(ex.op.Variables)
	if err != nil {
		return nil, err
	}
	resolved, err := f.Rest.Path.Resolve(args, exports)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path.String(), err)
	}

	body, err := ex.link.do(ctx, ex.op, f.Rest.Method, resolved)
	if err != nil {
		return nil, err
	}

	var raw any
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode response from %s: %w", resolved, err)
		}
	}

	return ex.project(ctx, raw, f.Selections, f.Rest.Type, exports, path)
}

// project shapes a JSON value according to the selections. Lists are
// projected item by item; objects resolve their plain fields first so that
// exports are in scope before any nested REST field is requested.
func (ex *execution) project(ctx context.Context, raw any, sel []*gql.Field, typename string, exports map[string]any, path ast.Path) (any, error) {
	switch v := raw.(type) {
	case []any:
		return ex.projectList(ctx, v, sel, typename, exports, path)
	case map[string]any:
		if len(sel) == 0 {
			return v, nil
		}
		return ex.projectObject(ctx, v, sel, typename, exports, path)
	default:
		return raw, nil
	}
}

func (ex *execution) projectList(ctx context.Context, items []any, sel []*gql.Field, typename string, exports map[string]any, path ast.Path) (any, error) {
	out := make([]any, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ex.link.concurrency)
	for i, item := range items {
		g.Go(func() error {
			v, err := ex.project(gctx, item, sel, typename, exports, appendPath(path, ast.PathIndex(i)))
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (ex *execution) projectObject(ctx context.Context, obj map[string]any, sel []*gql.Field, typename string, exports map[string]any, path ast.Path) (any, error) {
	out := make(map[string]any, len(sel)+1)
	if typename != "" {
		out[TypenameField] = typename
	}

	scope := maps.Clone(exports)
	var nested []*gql.Field
	for _, f := range sel {
		if f.Rest != nil {
			nested = append(nested, f)
			continue
		}
		key := f.ResultKey()
		child := obj[f.Name]
		v, err := ex.project(ctx, child, f.Selections, ex.link.typePatch[typename+"."+f.Name], scope, appendPath(path, ast.PathName(key)))
		if err != nil {
			return nil, err
		}
		out[key] = v
		if f.ExportAs != "" && child != nil {
			scope[f.ExportAs] = child
		}
	}

	for _, f := range nested {
		key := f.ResultKey()
		fieldPath := appendPath(path, ast.PathName(key))
		v, err := ex.fetch(ctx, f, scope, fieldPath)
		if err != nil {
			var statusErr *StatusError
			if errors.Is(err, ErrMissingExport) || errors.As(err, &statusErr) {
				ex.addError(fieldPath, err)
				out[key] = nil
				continue
			}
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (l *Link) do(ctx context.Context, op *link.Operation, method, path string) ([]byte, error) {
	url := l.joinURL(path)

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range op.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	op.RecordResponse(link.Response{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: url, Err: err}
	}

	l.logger.Debug("rest call",
		"operation", op.Name,
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func appendPath(path ast.Path, el ast.PathElement) ast.Path {
	out := make(ast.Path, len(path), len(path)+1)
	copy(out, path)
	return append(out, el)
}
