// Package dashboard runs the dashboard queries and decodes their results
// into models.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sorenmh/pushdash/internal/cache"
	"github.com/sorenmh/pushdash/internal/gql"
	"github.com/sorenmh/pushdash/internal/link"
	"github.com/sorenmh/pushdash/internal/models"
	"github.com/sorenmh/pushdash/internal/queries"
)

// ErrInvalidInput is returned when a required name is empty
var ErrInvalidInput = errors.New("invalid input")

// Querier runs a query request
type Querier interface {
	Query(ctx context.Context, req cache.Request) (*link.Result, error)
}

// Service exposes the dashboard screens as typed calls
type Service struct {
	client Querier
	policy cache.FetchPolicy
	logger *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithFetchPolicy sets the fetch policy used for every query
func WithFetchPolicy(p cache.FetchPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithLogger sets the service logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a Service querying through client
func New(client Querier, opts ...Option) *Service {
	s := &Service{
		client: client,
		policy: cache.CacheFirst,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithPolicy returns a copy of the service using policy
func (s *Service) WithPolicy(policy cache.FetchPolicy) *Service {
	cp := *s
	cp.policy = policy
	return &cp
}

// Apps lists all apps
func (s *Service) Apps(ctx context.Context) ([]models.App, error) {
	var out struct {
		Apps []models.App `json:"apps"`
	}
	if err := s.run(ctx, queries.Apps, queries.FieldApps, nil, &out); err != nil {
		return nil, err
	}
	return out.Apps, nil
}

// Deployments lists the deployments of app, each with its current package
// and per-version metrics
func (s *Service) Deployments(ctx context.Context, app string) ([]models.Deployment, error) {
	if err := required("app name", app); err != nil {
		return nil, err
	}
	var out struct {
		Deployments []models.Deployment `json:"deployments"`
	}
	vars := map[string]any{"appName": app}
	if err := s.run(ctx, queries.Deployments, queries.FieldDeployments, vars, &out); err != nil {
		return nil, err
	}
	return out.Deployments, nil
}

// DeploymentMetrics returns the per-version counters of a deployment
func (s *Service) DeploymentMetrics(ctx context.Context, app, deployment string) (models.Metrics, error) {
	if err := required("app name", app); err != nil {
		return nil, err
	}
	if err := required("deployment name", deployment); err != nil {
		return nil, err
	}
	var out struct {
		Versions models.Metrics `json:"versions"`
	}
	vars := map[string]any{"appName": app, "deploymentName": deployment}
	if err := s.run(ctx, queries.DeploymentMetrics, queries.FieldDeploymentMetrics, vars, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// History lists the past releases of a deployment
func (s *Service) History(ctx context.Context, app, deployment string) ([]models.HistoryEntry, error) {
	if err := required("app name", app); err != nil {
		return nil, err
	}
	if err := required("deployment name", deployment); err != nil {
		return nil, err
	}
	var out struct {
		History []models.HistoryEntry `json:"history"`
	}
	vars := map[string]any{"appName": app, "deploymentName": deployment}
	if err := s.run(ctx, queries.DeploymentHistory, queries.FieldDeploymentHistory, vars, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// run executes doc and decodes the value of its root field into v. Partial
// errors are logged; the fields they nulled decode as zero values.
func (s *Service) run(ctx context.Context, doc *gql.Document, field string, vars map[string]any, v any) error {
	res, err := s.client.Query(ctx, cache.Request{
		Document:  doc,
		Variables: vars,
		Policy:    s.policy,
	})
	if err != nil {
		return err
	}

	for _, e := range res.Errors {
		s.logger.Warn("partial query result", "field", field, "path", e.Path.String(), "error", e.Message)
	}

	raw, ok := res.Data[field]
	if !ok || raw == nil {
		return nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", field, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", field, err)
	}
	return nil
}

func required(what, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, what)
	}
	return nil
}
