package mosaic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/executor"
	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/log"
	"github.com/buildbuildio/mosaic/merger"
	"github.com/buildbuildio/mosaic/metrics"
	"github.com/buildbuildio/mosaic/planner"
	"github.com/buildbuildio/mosaic/queryer"
	"github.com/buildbuildio/mosaic/remote"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// DefaultIntrospectionTimeout bounds startup introspection unless
// WithIntrospectionTimeout says otherwise
const DefaultIntrospectionTimeout = 30 * time.Second

// RemoteBuilder turns an endpoint into an executable schema
type RemoteBuilder func(ctx context.Context, endpoint string) (executable.Schema, error)

type Gateway struct {
	schema  *ast.Schema
	owners  merger.OwnerMap
	schemas map[string]executable.Schema

	executor      executor.Executor
	planner       planner.Planner
	merger        merger.Merger
	remoteBuilder RemoteBuilder
	remoteOptions []remote.Option
	locals        []executable.Schema
	logger        logrus.FieldLogger

	introspectionTimeout time.Duration
}

type GatewayOption func(*Gateway)

func WithExecutor(e executor.Executor) GatewayOption {
	return func(g *Gateway) {
		g.executor = e
	}
}

func WithMerger(m merger.Merger) GatewayOption {
	return func(g *Gateway) {
		g.merger = m
	}
}

func WithPlanner(p planner.Planner) GatewayOption {
	return func(g *Gateway) {
		g.planner = p
	}
}

// WithRemoteBuilder replaces remote.Build, remote options are ignored then
func WithRemoteBuilder(b RemoteBuilder) GatewayOption {
	return func(g *Gateway) {
		g.remoteBuilder = b
	}
}

// WithRemoteOptions sets options every remote schema is built with
func WithRemoteOptions(opts ...remote.Option) GatewayOption {
	return func(g *Gateway) {
		g.remoteOptions = append(g.remoteOptions, opts...)
	}
}

// WithLocalSchemas adds in process schemas, merged after the remote ones
func WithLocalSchemas(schemas ...executable.Schema) GatewayOption {
	return func(g *Gateway) {
		g.locals = append(g.locals, schemas...)
	}
}

// WithIntrospectionTimeout bounds building all remote schemas, 0 disables the bound
func WithIntrospectionTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.introspectionTimeout = d
	}
}

func WithLogger(logger logrus.FieldLogger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// NewGateway introspects every endpoint concurrently and merges results with
// local schemas. It fails if any single endpoint fails or introspection
// outlasts the introspection timeout.
func NewGateway(ctx context.Context, endpoints []string, options ...GatewayOption) (*Gateway, error) {
	g := &Gateway{introspectionTimeout: DefaultIntrospectionTimeout}

	for _, optionFunc := range options {
		optionFunc(g)
	}

	if g.logger == nil {
		g.logger = log.Get()
	}

	if g.planner == nil {
		var p planner.RootPlanner
		g.planner = p
	}

	if g.executor == nil {
		var e executor.RootExecutor
		g.executor = e
	}

	if g.merger == nil {
		g.merger = merger.Merge
	}

	if g.remoteBuilder == nil {
		opts := append([]remote.Option{remote.WithLogger(g.logger)}, g.remoteOptions...)
		g.remoteBuilder = func(ctx context.Context, endpoint string) (executable.Schema, error) {
			return remote.Build(ctx, endpoint, opts...)
		}
	}

	type built struct {
		index  int
		schema executable.Schema
	}

	buildCtx := ctx
	if g.introspectionTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, g.introspectionTimeout)
		defer cancel()
	}

	// every build runs to completion before the result is inspected
	remotes, errs := common.AsyncMapReduce(
		lo.Range(len(endpoints)),
		make([]executable.Schema, len(endpoints)),
		func(index int) (built, error) {
			s, err := g.remoteBuilder(buildCtx, endpoints[index])
			return built{index: index, schema: s}, err
		},
		func(acc []executable.Schema, value built) []executable.Schema {
			acc[value.index] = value.schema
			return acc
		},
	)
	if errs != nil {
		return nil, fmt.Errorf("unable to introspect remote schemas: %w", errs)
	}

	inputs := append(remotes, g.locals...)

	// merge schemas into one
	mr, err := g.merger.Merge(inputs)
	if err != nil {
		return nil, fmt.Errorf("unable to merge schemas: %w", err)
	}

	g.schema = mr.Schema
	g.owners = mr.Owners
	g.schemas = mr.Schemas

	g.logger.WithFields(logrus.Fields{
		"schemas": mr.Owners.Owners(),
		"types":   len(mr.Schema.Types),
	}).Info("schemas merged")

	return g, nil
}

// Schema returns the merged schema
func (g *Gateway) Schema() *ast.Schema {
	return g.schema
}

// Owners returns the root field ownership of the merged schema
func (g *Gateway) Owners() merger.OwnerMap {
	return g.owners
}

type Result struct {
	Errors gqlerrors.ErrorList    `json:"errors,omitempty"`
	Data   map[string]interface{} `json:"data"`

	index int `json:"-"`
}

type Results []*Result

func (rs Results) Emit(w http.ResponseWriter, isBatch bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	e := json.NewEncoder(w)
	if isBatch {
		_ = e.Encode(rs)
	} else {
		_ = e.Encode(rs[0])
	}
}

func validationError(index int, err error) *Result {
	return &Result{
		Errors: gqlerrors.ErrorList{
			gqlerrors.NewError(gqlerrors.ValidationFailedError, err),
		},
		index: index,
	}
}

// getOperation picks the operation named by request, or the only one in query
func getOperation(query *ast.QueryDocument, request *requests.Request) (*ast.OperationDefinition, error) {
	if request.OperationName != nil {
		if op := query.Operations.ForName(*request.OperationName); op != nil {
			return op, nil
		}
		return nil, fmt.Errorf("unable to extract query for operation %s", *request.OperationName)
	}

	if len(query.Operations) == 1 {
		return query.Operations[0], nil
	}

	return nil, errors.New("many queries provided, but no operationName")
}

// Execute runs a single request against the merged schema
func (g *Gateway) Execute(ctx context.Context, request *requests.Request) *Result {
	return g.execute(ctx, 0, request)
}

func (g *Gateway) execute(ctx context.Context, index int, request *requests.Request) *Result {
	query, qerr := gqlparser.LoadQuery(g.schema, request.Query)
	if qerr != nil {
		return &Result{
			Errors: gqlerrors.FormatError(qerr),
			index:  index,
		}
	}

	operation, err := getOperation(query, request)
	if err != nil {
		return validationError(index, err)
	}

	if operation.Operation == ast.Subscription {
		return validationError(index, errors.New("subscriptions are only served over websocket"))
	}

	// get the plan for specific query
	plan, err := g.planner.Plan(&planner.PlanningContext{
		Request:   request,
		Operation: operation,
		Schema:    g.schema,
		Owners:    g.owners,
	})
	if err != nil {
		return validationError(index, err)
	}

	// fire the query
	data, err := g.executor.Execute(ctx, &executor.ExecutionContext{
		QueryPlan: plan,
		Request:   request,
		Schema:    g.schema,
		Schemas:   g.schemas,
		Logger:    g.logger,
	})

	metrics.RecordOperation(string(operation.Operation), err != nil)

	if err != nil {
		g.logger.WithError(err).WithField("operation", operation.Name).Debug("operation finished with errors")
	}

	return &Result{
		Errors: gqlerrors.FormatError(err),
		Data:   data,
		index:  index,
	}
}

// queryHandler responds to queries on POST requests. POST requests can either
// be a single object with { query, variables, operationName } or a list of
// that object.
func (g *Gateway) queryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		emitError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s is not allowed", r.Method))
		return
	}

	rs, err := requests.Parse(r)
	if err != nil {
		emitError(
			w,
			http.StatusUnprocessableEntity,
			err,
		)
		return
	}

	ctx := queryer.WithInboundHeaders(r.Context(), r.Header)

	results, _ := common.AsyncMapReduce(
		lo.Range(len(rs.Requests)),
		make(Results, len(rs.Requests)),
		func(index int) (*Result, error) {
			return g.execute(ctx, index, rs.Requests[index]), nil
		},
		func(acc Results, value *Result) Results {
			acc[value.index] = value
			return acc
		},
	)

	// emit the response
	results.Emit(w, rs.Batched)
}

func emitError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]interface{}{
		"data":   nil,
		"errors": gqlerrors.FormatError(err),
	}

	e := json.NewEncoder(w)
	_ = e.Encode(resp)
}

func isWebsocketUpgrade(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Handler serves graphql over POST and subscriptions over graphql-ws
func (g *Gateway) Handler(w http.ResponseWriter, r *http.Request) {
	if isWebsocketUpgrade(r) {
		g.subscriptionHandler(w, r)
		return
	}

	g.queryHandler(w, r)
}
