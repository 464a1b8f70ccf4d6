package merger

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/stretchr/testify/assert"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

type testSchema struct {
	name   string
	schema *ast.Schema
}

var _ executable.Schema = &testSchema{}

func (s *testSchema) Name() string        { return s.name }
func (s *testSchema) Schema() *ast.Schema { return s.schema }
func (s *testSchema) Execute(context.Context, *executable.Request) (*requests.Response, error) {
	return &requests.Response{}, nil
}

func isEqualSchemas(t *testing.T, expected, actual string) {
	t.Helper()

	assert.Equal(
		t,
		loadAndFormatSchema(expected),
		loadAndFormatSchema(actual),
		fmt.Sprintf("%s not equals to expected %s", actual, expected),
	)
}

func inputsFromSDL(inputs []string) []executable.Schema {
	var res []executable.Schema
	for i, input := range inputs {
		res = append(res, &testSchema{
			name: strconv.Itoa(i),
			schema: gqlparser.MustLoadSchema(
				&ast.Source{Name: "schema", Input: input},
			),
		})
	}
	return res
}

func mustRunMerger(t *testing.T, inputs []string) (string, *MergeResult) {
	t.Helper()

	res, err := Merge(inputsFromSDL(inputs))
	if err != nil {
		panic(err)
	}

	return Print(res.Schema), res
}

func loadAndFormatSchema(input string) string {
	return Print(gqlparser.MustLoadSchema(&ast.Source{Name: "schema", Input: input}))
}
