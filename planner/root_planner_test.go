package planner

import (
	"testing"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/merger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

func TestPlanSingleOwner(t *testing.T) {
	actual, plan := mustRunPlanner(t, RootPlanner{}, `{ countries { code name } }`, nil)

	assert.JSONEq(t, `{
		"Operation": "query",
		"ParentType": "Query",
		"Steps": [
			{"Owner": "countries", "SelectionSet": "{ countries { code name } }", "Variables": []}
		]
	}`, actual)
	assert.Equal(t, []string{"countries"}, plan.Steps[0].ResponseKeys())
}

func TestPlanGroupsByOwner(t *testing.T) {
	actual, plan := mustRunPlanner(t, RootPlanner{}, `
		query Overview($code: ID!) {
			total: user_count
			country(code: $code) { name }
			users { email }
			countries { code }
		}
	`, map[string]interface{}{"code": "EE"})

	assert.JSONEq(t, `{
		"Operation": "query",
		"ParentType": "Query",
		"Steps": [
			{"Owner": "local", "SelectionSet": "{ total: user_count users { email } }", "Variables": []},
			{"Owner": "countries", "SelectionSet": "{ country(code: $code) { name } countries { code } }", "Variables": ["code"]}
		]
	}`, actual)

	assert.Equal(t, []string{"total", "users"}, plan.Steps[0].ResponseKeys())
	assert.Equal(t, []string{"country", "countries"}, plan.Steps[1].ResponseKeys())
	assert.Equal(t, "Overview", plan.Steps[1].Operation.Name)
	assert.Len(t, plan.Fields(), 4)
}

func TestPlanIntrospectionIsInternal(t *testing.T) {
	_, plan := mustRunPlanner(t, RootPlanner{}, `
		{
			__typename
			user_count
			__schema { queryType { name } }
			__type(name: "Country") { name }
		}
	`, nil)

	require.Len(t, plan.Steps, 2)
	assert.Equal(t, common.InternalServiceName, plan.Steps[0].Owner)
	assert.True(t, plan.Steps[0].IsInternal())
	assert.Equal(t, []string{"__typename", "__schema", "__type"}, plan.Steps[0].ResponseKeys())
	assert.Equal(t, "local", plan.Steps[1].Owner)
	assert.False(t, plan.Steps[1].IsInternal())
}

func TestPlanFlattensRootFragments(t *testing.T) {
	actual, _ := mustRunPlanner(t, RootPlanner{}, `
		query ($withUsers: Boolean!) {
			... on Query { user_count }
			...Countries
			... @include(if: $withUsers) { users { email } }
			country(code: "EE") @skip(if: true) { name }
		}

		fragment Countries on Query {
			countries { code }
		}
	`, map[string]interface{}{"withUsers": false})

	assert.JSONEq(t, `{
		"Operation": "query",
		"ParentType": "Query",
		"Steps": [
			{"Owner": "local", "SelectionSet": "{ user_count }", "Variables": []},
			{"Owner": "countries", "SelectionSet": "{ countries { code } }", "Variables": []}
		]
	}`, actual)
}

func TestPlanMutationKeepsDocumentOrder(t *testing.T) {
	actual, _ := mustRunPlanner(t, RootPlanner{}, `
		mutation {
			renameCountry(code: "EE", name: "Estonia") { name }
			deleteCountry(code: "LV")
			confirmUser(email: "ada@example.com") { email }
			other: deleteCountry(code: "LT")
		}
	`, nil)

	assert.JSONEq(t, `{
		"Operation": "mutation",
		"ParentType": "Mutation",
		"Steps": [
			{"Owner": "countries", "SelectionSet": "{ renameCountry(code: \"EE\", name: \"Estonia\") { name } deleteCountry(code: \"LV\") }", "Variables": []},
			{"Owner": "local", "SelectionSet": "{ confirmUser(email: \"ada@example.com\") { email } }", "Variables": []},
			{"Owner": "countries", "SelectionSet": "{ other: deleteCountry(code: \"LT\") }", "Variables": []}
		]
	}`, actual)
}

func TestPlanUnknownOwner(t *testing.T) {
	s := gqlparser.MustLoadSchema(&ast.Source{Name: "fixture", Input: testSchema})
	doc := gqlparser.MustLoadQuery(s, `{ users { email } }`)

	_, err := RootPlanner{}.Plan(&PlanningContext{
		Operation: doc.Operations[0],
		Schema:    s,
		Owners:    merger.OwnerMap{},
	})
	assert.EqualError(t, err, "could not find owner for field users of type Query")
}

func TestPlanMissingRoot(t *testing.T) {
	s := gqlparser.MustLoadSchema(&ast.Source{Name: "fixture", Input: `type Query { user_count: Int }`})

	_, err := RootPlanner{}.Plan(&PlanningContext{
		Operation: &ast.OperationDefinition{Operation: ast.Subscription},
		Schema:    s,
		Owners:    testOwners,
	})
	assert.EqualError(t, err, "schema does not support subscription operations")
}
