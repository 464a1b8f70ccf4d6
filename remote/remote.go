// Package remote wraps a graphql service reachable over http as an executable schema.
package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/introspection"
	"github.com/buildbuildio/mosaic/queryer"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2/ast"
)

// Schema is an introspected remote schema. Execute forwards requests to the
// service it was built from.
type Schema struct {
	endpoint string
	schema   *ast.Schema
	link     queryer.Queryer
}

var (
	_ executable.Schema     = &Schema{}
	_ executable.Subscriber = &Schema{}
)

type options struct {
	client       *http.Client
	mdwares      []queryer.RequestMiddleware
	maxBatchSize int
	logger       logrus.FieldLogger
}

type Option func(*options)

// WithHTTPClient sets client used for introspection and delegated requests
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithMiddlewares sets middlewares applied to every outgoing request
func WithMiddlewares(mdwares ...queryer.RequestMiddleware) Option {
	return func(o *options) {
		o.mdwares = append(o.mdwares, mdwares...)
	}
}

func WithMaxBatchSize(size int) Option {
	return func(o *options) {
		o.maxBatchSize = size
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Build introspects the service at endpoint. Every call creates its own link,
// so two builds for the same endpoint share no state.
func Build(ctx context.Context, endpoint string, opts ...Option) (*Schema, error) {
	o := &options{
		client:       &http.Client{},
		maxBatchSize: 1,
		logger:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}

	link := queryer.NewHTTPQueryer(endpoint, o.maxBatchSize).
		WithHTTPClient(o.client).
		WithMiddlewares(o.mdwares)

	logger := o.logger.WithField("endpoint", endpoint)
	logger.Debug("introspecting remote schema")

	start := time.Now()
	s, err := BuildWithLink(ctx, link)
	if err != nil {
		logger.WithError(err).Error("remote schema introspection failed")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"types":    len(s.schema.Types),
		"duration": time.Since(start).String(),
	}).Info("remote schema introspected")

	return s, nil
}

// BuildWithLink introspects the service behind link
func BuildWithLink(ctx context.Context, link queryer.Queryer) (*Schema, error) {
	schema, err := introspection.Introspect(ctx, link)
	if err != nil {
		return nil, err
	}

	return &Schema{
		endpoint: link.URL(),
		schema:   schema,
		link:     link,
	}, nil
}

// Name returns the endpoint URI
func (s *Schema) Name() string {
	return s.endpoint
}

func (s *Schema) Schema() *ast.Schema {
	return s.schema
}

// Execute forwards req to the service. The {data, errors} envelope is returned unmodified.
func (s *Schema) Execute(ctx context.Context, req *executable.Request) (*requests.Response, error) {
	resp, err := s.link.Query(ctx, []*requests.Request{req.ToRequest()})
	if err != nil {
		return nil, err
	}

	return resp[0], nil
}

func (s *Schema) Subscribe(ctx context.Context, req *executable.Request, closeCh <-chan struct{}, resCh chan *requests.Response) error {
	return s.link.Subscribe(ctx, req.ToRequest(), closeCh, resCh)
}
