package introspection

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/buildbuildio/mosaic/queryer"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// MockSuccessQueryer responds with pre-defined json data
type MockSuccessQueryer struct {
	Value string
}

var _ queryer.Queryer = &MockSuccessQueryer{}

func (q *MockSuccessQueryer) URL() string {
	return "mockSuccessQueryer"
}

func (q *MockSuccessQueryer) Query(ctx context.Context, inputs []*requests.Request) ([]*requests.Response, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(q.Value), &data); err != nil {
		return nil, err
	}
	return []*requests.Response{{Data: data}}, nil
}

func (q *MockSuccessQueryer) Subscribe(context.Context, *requests.Request, <-chan struct{}, chan *requests.Response) error {
	return nil
}

// MockQueryerFunc responds to the query by calling the provided function
type MockQueryerFunc struct {
	F func([]*requests.Request) ([]*requests.Response, error)
}

var _ queryer.Queryer = MockQueryerFunc{}

func (q MockQueryerFunc) URL() string {
	return "http://mock"
}

func (q MockQueryerFunc) Query(ctx context.Context, inputs []*requests.Request) ([]*requests.Response, error) {
	return q.F(inputs)
}

func (q MockQueryerFunc) Subscribe(context.Context, *requests.Request, <-chan struct{}, chan *requests.Response) error {
	return nil
}

func printSchema(schema *ast.Schema) string {
	buf := bytes.NewBufferString("")
	formatter.NewFormatter(buf).FormatSchema(schema)
	return buf.String()
}

func checkRemoteIntrospectSuccess(t *testing.T, response string, expected string) {
	t.Helper()

	schema, err := Introspect(context.Background(), &MockSuccessQueryer{Value: response})
	require.NoError(t, err)

	expectedSchema, gerr := gqlparser.LoadSchema(&ast.Source{Input: expected})
	require.Nil(t, gerr)

	assert.Equal(t, printSchema(expectedSchema), printSchema(schema))
}
