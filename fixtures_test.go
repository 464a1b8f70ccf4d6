package mosaic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buildbuildio/mosaic/local"
	"github.com/buildbuildio/mosaic/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const countriesSDL = `
	type Country {
		code: ID!
		name: String
		capital: String
	}

	type Query {
		countries: [Country]
		country(code: ID!): Country
	}

	type Mutation {
		renameCountry(code: ID!, name: String!): Country
	}
`

const continentsSDL = `
	type Continent {
		code: ID!
		name: String
	}

	type Query {
		continents: [Continent]
	}
`

var countriesData = map[string]interface{}{
	"countries": []interface{}{
		map[string]interface{}{"code": "EE", "name": "Estonia"},
		map[string]interface{}{"code": "KE", "name": "Kenya"},
	},
}

// countryCodesData answers a selection of codes only
var countryCodesData = map[string]interface{}{
	"countries": []interface{}{
		map[string]interface{}{"code": "EE"},
		map[string]interface{}{"code": "KE"},
	},
}

type fakeProvider struct {
	count    int
	users    []store.User
	countErr error
	listErr  error
}

func (p *fakeProvider) CountUsers(context.Context) (int, error) {
	return p.count, p.countErr
}

func (p *fakeProvider) ListUsers(context.Context) ([]store.User, error) {
	return p.users, p.listErr
}

var testUsers = []store.User{
	{ID: uuid.New(), Email: "ada@example.com", Password: "lovelace", Continent: "EU"},
}

func testLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newTestGateway(t *testing.T, endpoints []string, provider local.UserProvider, opts ...GatewayOption) *Gateway {
	t.Helper()

	gw, err := buildTestGateway(endpoints, provider, opts...)
	require.NoError(t, err)
	return gw
}

func buildTestGateway(endpoints []string, provider local.UserProvider, opts ...GatewayOption) (*Gateway, error) {
	ls, err := local.NewSchema(provider, local.WithLogger(testLogger()))
	if err != nil {
		return nil, err
	}

	opts = append([]GatewayOption{
		WithLocalSchemas(ls),
		WithLogger(testLogger()),
	}, opts...)

	return NewGateway(context.Background(), endpoints, opts...)
}

type testResult struct {
	Data   map[string]interface{} `json:"data"`
	Errors []struct {
		Message    string                 `json:"message"`
		Path       []interface{}          `json:"path"`
		Extensions map[string]interface{} `json:"extensions"`
	} `json:"errors"`
}

func post(t *testing.T, h http.HandlerFunc, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		r.Header.Set(headers[i], headers[i+1])
	}

	rr := httptest.NewRecorder()
	h(rr, r)
	return rr
}

func query(t *testing.T, gw *Gateway, body string, headers ...string) *testResult {
	t.Helper()

	rr := post(t, gw.Handler, body, headers...)
	require.Equal(t, http.StatusOK, rr.Code)

	var res testResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return &res
}

func sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
