package executor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/merger"
	"github.com/buildbuildio/mosaic/planner"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// MockSchemaFunc responds to requests by calling the provided function
type MockSchemaFunc struct {
	name string
	F    func(context.Context, *executable.Request) (*requests.Response, error)
}

var _ executable.Schema = MockSchemaFunc{}

func (s MockSchemaFunc) Name() string {
	return s.name
}

func (s MockSchemaFunc) Schema() *ast.Schema {
	return nil
}

func (s MockSchemaFunc) Execute(ctx context.Context, req *executable.Request) (*requests.Response, error) {
	return s.F(ctx, req)
}

// MockSuccessSchema responds with pre-defined data
func MockSuccessSchema(name string, data map[string]interface{}) MockSchemaFunc {
	return MockSchemaFunc{
		name: name,
		F: func(context.Context, *executable.Request) (*requests.Response, error) {
			return &requests.Response{Data: data}, nil
		},
	}
}

var testSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "merged", Input: `
	type Country {
		code: ID!
		name: String
	}

	type user {
		email: String
		password: String
	}

	type Query {
		countries(continent: String): [Country!]
		country(code: ID!): Country
		continents: [String!]!
		user_count: Int
		users: [user]
	}

	type Mutation {
		renameCountry(code: ID!, name: String!): Country
		confirmUser(email: String!): user
	}
`})

var testOwners = merger.OwnerMap{
	"Query": {
		"countries":  "countries",
		"country":    "countries",
		"continents": "countries",
		"user_count": "local",
		"users":      "local",
	},
	"Mutation": {
		"renameCountry": "countries",
		"confirmUser":   "local",
	},
}

func mustPlan(t *testing.T, query string, variables map[string]interface{}) *ExecutionContext {
	t.Helper()

	doc, errs := gqlparser.LoadQuery(testSchema, query)
	require.Len(t, errs, 0)
	require.Len(t, doc.Operations, 1, "bad test: query must be a single operation")

	req := &requests.Request{Query: query, Variables: variables}

	plan, err := planner.RootPlanner{}.Plan(&planner.PlanningContext{
		Operation: doc.Operations[0],
		Request:   req,
		Schema:    testSchema,
		Owners:    testOwners,
	})
	require.NoError(t, err)

	return &ExecutionContext{
		QueryPlan: plan,
		Request:   req,
		Schema:    testSchema,
	}
}

func mustMarshal(t *testing.T, v interface{}) string {
	t.Helper()

	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func responseKeyOf(s ast.Selection) string {
	f := s.(*ast.Field)
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}
