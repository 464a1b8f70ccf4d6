package planner

import (
	"encoding/json"
	"testing"

	"github.com/buildbuildio/mosaic/merger"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

var testSchema = `
	type Country {
		code: ID!
		name: String
	}

	type user {
		email: String
		password: String
	}

	type Query {
		countries(continent: String): [Country!]!
		country(code: ID!): Country
		user_count: Int
		users: [user]
	}

	type Mutation {
		renameCountry(code: ID!, name: String!): Country
		confirmUser(email: String!): user
		deleteCountry(code: ID!): Boolean
	}
`

var testOwners = merger.OwnerMap{
	"Query": {
		"countries":  "countries",
		"country":    "countries",
		"user_count": "local",
		"users":      "local",
	},
	"Mutation": {
		"renameCountry": "countries",
		"confirmUser":   "local",
		"deleteCountry": "countries",
	},
}

func mustRunPlanner(t *testing.T, p Planner, query string, variables map[string]interface{}) (string, *QueryPlan) {
	t.Helper()

	actual, err := runPlanner(t, p, query, variables)
	require.NoError(t, err)

	v, err := json.Marshal(actual)
	require.NoError(t, err)
	return string(v), actual
}

func runPlanner(t *testing.T, p Planner, query string, variables map[string]interface{}) (*QueryPlan, error) {
	t.Helper()

	s := gqlparser.MustLoadSchema(&ast.Source{Name: "fixture", Input: testSchema})

	doc := gqlparser.MustLoadQuery(s, query)
	require.Len(t, doc.Operations, 1, "bad test: query must be a single operation")

	return p.Plan(&PlanningContext{
		Operation: doc.Operations[0],
		Request:   &requests.Request{Query: query, Variables: variables},
		Schema:    s,
		Owners:    testOwners,
	})
}
