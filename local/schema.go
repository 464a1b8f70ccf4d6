// Package local serves the part of the graph backed by the user store.
package local

import (
	"context"
	"fmt"
	"sort"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/log"
	"github.com/buildbuildio/mosaic/requests"
	"github.com/buildbuildio/mosaic/store"

	"github.com/graphql-go/graphql"
	"github.com/sirupsen/logrus"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const DefaultName = "local"

// TypeDefs is the SDL of the local schema
const TypeDefs = `
type Query {
	user_count: Int
}

extend type Query {
	users: [user]
}

type user {
	email: String
	password: String
}
`

// UserProvider is the read side of the user store
type UserProvider interface {
	CountUsers(ctx context.Context) (int, error)
	ListUsers(ctx context.Context) ([]store.User, error)
}

var _ UserProvider = &store.Store{}

// Schema resolves operations in process through a fixed dispatch table.
// The table is bound to a graphql-go schema built from the same SDL.
type Schema struct {
	name       string
	schema     *ast.Schema
	executable graphql.Schema
	logger     logrus.FieldLogger
}

var _ executable.Schema = &Schema{}

type options struct {
	name            string
	exposePasswords bool
	logger          logrus.FieldLogger
}

type Option func(*options)

// WithName overrides name the schema is registered under in the merged graph
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithExposePasswords makes user.password resolve to the stored value.
// Passwords resolve to null otherwise.
func WithExposePasswords(expose bool) Option {
	return func(o *options) {
		o.exposePasswords = expose
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewSchema parses TypeDefs and binds its fields to provider
func NewSchema(provider UserProvider, opts ...Option) (*Schema, error) {
	o := &options{
		name:   DefaultName,
		logger: log.Get(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return newSchema(o.name, TypeDefs, userResolvers(provider, o.exposePasswords), o.logger)
}

func newSchema(name, typeDefs string, resolvers resolverTable, logger logrus.FieldLogger) (*Schema, error) {
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: typeDefs})
	if err != nil {
		return nil, fmt.Errorf("local schema %s: %w", name, err)
	}

	if err := resolvers.check(schema); err != nil {
		return nil, fmt.Errorf("local schema %s: %w", name, err)
	}

	logger = logger.WithField("schema", name)

	compiled, err := buildExecutable(schema, resolvers, logger)
	if err != nil {
		return nil, fmt.Errorf("local schema %s: %w", name, err)
	}

	return &Schema{
		name:       name,
		schema:     schema,
		executable: compiled,
		logger:     logger,
	}, nil
}

func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) Schema() *ast.Schema {
	return s.schema
}

// Execute runs the request against the dispatch table. Resolver failures are
// reported per field, so the returned error is nil unless op has no root.
func (s *Schema) Execute(ctx context.Context, req *executable.Request) (*requests.Response, error) {
	if s.rootDefinition(req.Operation.Type) == nil {
		return nil, fmt.Errorf("local schema %s has no %s root", s.name, req.Operation.Type)
	}

	errs := newFieldErrors()
	result := graphql.Do(graphql.Params{
		Schema:         s.executable,
		RequestString:  req.Query(),
		VariableValues: req.Variables,
		OperationName:  req.Operation.Name,
		Context:        errs.withContext(ctx),
	})

	resp := &requests.Response{}
	data, executed := result.Data.(map[string]interface{})
	if executed {
		resp.Data = data
	}

	for _, ferr := range result.Errors {
		locations := make([]gqlerrors.Location, len(ferr.Locations))
		for i, l := range ferr.Locations {
			locations[i] = gqlerrors.Location{Line: l.Line, Column: l.Column}
		}
		resp.Errors = append(resp.Errors, errs.format(ferr.Message, ferr.Path, locations, executed)...)
	}

	return resp, nil
}

func (s *Schema) rootDefinition(op ast.Operation) *ast.Definition {
	switch op {
	case ast.Mutation:
		return s.schema.Mutation
	case ast.Subscription:
		return s.schema.Subscription
	default:
		return s.schema.Query
	}
}

// Coordinate addresses a field of an object type
type Coordinate struct {
	Type  string
	Field string
}

func (c Coordinate) String() string {
	return c.Type + "." + c.Field
}

// ResolveParams is what a resolver gets to compute a field
type ResolveParams struct {
	// Source is the value of the parent object, nil for root fields
	Source interface{}
	Args   map[string]interface{}
}

type ResolverFunc func(ctx context.Context, p ResolveParams) (interface{}, error)

type resolverTable map[Coordinate]ResolverFunc

// check fails if an object field declared by schema has no resolver
func (t resolverTable) check(schema *ast.Schema) error {
	var missing []string
	for _, def := range schema.Types {
		if def.Kind != ast.Object || def.BuiltIn || common.IsBuiltinName(def.Name) {
			continue
		}
		for _, f := range def.Fields {
			if common.IsBuiltinName(f.Name) {
				continue
			}
			c := Coordinate{Type: def.Name, Field: f.Name}
			if _, ok := t[c]; !ok {
				missing = append(missing, c.String())
			}
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("no resolvers for %v", missing)
	}

	return nil
}
