package mosaic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/internal/graphqltest"
	"github.com/buildbuildio/mosaic/queryer"
	"github.com/buildbuildio/mosaic/remote"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayCountriesAndUserCount(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer countries.Close()

	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{count: 3})

	rr := post(t, gw.Handler, `{"query": "{ countries { code name } user_count }"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data": {
		"countries": [{"code": "EE", "name": "Estonia"}, {"code": "KE", "name": "Kenya"}],
		"user_count": 3
	}}`, rr.Body.String())

	received := countries.Received()
	require.Len(t, received, 1)
	assert.NotContains(t, received[0].Query, "user_count")
}

func TestGatewayRemoteDownAfterStartup(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{count: 3})
	countries.Close()

	res := query(t, gw, `{"query": "{ countries { code name } user_count }"}`)

	assert.Equal(t, map[string]interface{}{"countries": nil, "user_count": float64(3)}, res.Data)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, []interface{}{"countries"}, res.Errors[0].Path)
	assert.Equal(t, gqlerrors.TransportFailed, res.Errors[0].Extensions["code"])
	assert.Contains(t, res.Errors[0].Message, countries.URL)
}

func TestGatewayLocalFieldsNeverTouchRemotes(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer countries.Close()

	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{count: 1, users: testUsers})

	res := query(t, gw, `{"query": "{ user_count users { email password } }"}`)
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]interface{}{
		"user_count": float64(1),
		"users": []interface{}{
			map[string]interface{}{"email": "ada@example.com", "password": nil},
		},
	}, res.Data)
	assert.Equal(t, 0, countries.Calls())
}

func TestGatewayPartialFailure(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countryCodesData))
	defer countries.Close()
	continents := graphqltest.NewService(continentsSDL, graphqltest.StaticData(nil))

	gw := newTestGateway(t, []string{countries.URL, continents.URL}, &fakeProvider{
		countErr: &gqlerrors.DataAccessError{Op: "count_users", Err: errors.New("connection refused")},
	})
	continents.Close()

	res := query(t, gw, `{"query": "{ countries { code } continents { code } user_count }"}`)

	assert.Equal(t, map[string]interface{}{
		"countries": []interface{}{
			map[string]interface{}{"code": "EE"},
			map[string]interface{}{"code": "KE"},
		},
		"continents": nil,
		"user_count": nil,
	}, res.Data)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, []interface{}{"continents"}, res.Errors[0].Path)
	assert.Equal(t, gqlerrors.TransportFailed, res.Errors[0].Extensions["code"])
	assert.Equal(t, []interface{}{"user_count"}, res.Errors[1].Path)
	assert.Equal(t, gqlerrors.DataAccessFailed, res.Errors[1].Extensions["code"])
}

func TestGatewayStartupFailureNamesEndpoint(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer countries.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	_, err := buildTestGateway([]string{countries.URL, deadURL}, &fakeProvider{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), deadURL)

	var ierr *gqlerrors.IntrospectionError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, deadURL, ierr.Endpoint)
}

func TestGatewayRootFieldConflict(t *testing.T) {
	first := graphqltest.NewService(continentsSDL, graphqltest.StaticData(nil))
	defer first.Close()
	second := graphqltest.NewService(continentsSDL, graphqltest.StaticData(nil))
	defer second.Close()

	_, err := buildTestGateway([]string{first.URL, second.URL}, &fakeProvider{})
	require.Error(t, err)

	var cerr *gqlerrors.SchemaConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Query", cerr.TypeName)
	assert.Equal(t, "continents", cerr.FieldName)
	assert.Equal(t, []string{first.URL, second.URL}, cerr.Owners)
}

func TestGatewayMutationFieldConflict(t *testing.T) {
	first := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer first.Close()
	second := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer second.Close()

	_, err := buildTestGateway([]string{first.URL, second.URL}, &fakeProvider{})
	require.Error(t, err)

	var cerr *gqlerrors.SchemaConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Mutation", cerr.TypeName)
	assert.Equal(t, "renameCountry", cerr.FieldName)
}

func TestGatewayRootTypeReference(t *testing.T) {
	viewer := graphqltest.NewService(`type Query { hello: String viewer: Query }`, graphqltest.StaticData(nil))
	defer viewer.Close()

	_, err := buildTestGateway([]string{viewer.URL}, &fakeProvider{})
	require.Error(t, err)

	var cerr *gqlerrors.SchemaConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Query", cerr.TypeName)
	assert.Equal(t, "viewer", cerr.FieldName)
	assert.Equal(t, []string{viewer.URL}, cerr.Owners)
	assert.Zero(t, viewer.Calls())
}

func TestGatewayLocalFieldConflict(t *testing.T) {
	users := graphqltest.NewService(`type Query { user_count: Int }`, graphqltest.StaticData(nil))
	defer users.Close()

	_, err := buildTestGateway([]string{users.URL}, &fakeProvider{})

	var cerr *gqlerrors.SchemaConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "user_count", cerr.FieldName)
	assert.Equal(t, []string{users.URL, "local"}, cerr.Owners)
}

func TestGatewayOnlyLocal(t *testing.T) {
	gw := newTestGateway(t, nil, &fakeProvider{count: 2})

	res := query(t, gw, `{"query": "{ user_count }"}`)
	assert.Equal(t, map[string]interface{}{"user_count": float64(2)}, res.Data)
	assert.Equal(t, []string{"local"}, gw.Owners().Owners())
	assert.NotNil(t, gw.Schema().Query.Fields.ForName("users"))
}

func TestGatewayValidationError(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer countries.Close()

	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{})

	res := query(t, gw, `{"query": "{ countries { population } }"}`)
	assert.Nil(t, res.Data)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "population")
	assert.Equal(t, 0, countries.Calls())
}

func TestGatewayMissingQueryError(t *testing.T) {
	gw := newTestGateway(t, nil, &fakeProvider{})

	rr := post(t, gw.Handler, `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var res testResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, "missing query from request", res.Errors[0].Message)
}

func TestGatewayMethodNotAllowed(t *testing.T) {
	gw := newTestGateway(t, nil, &fakeProvider{})

	rr := httptest.NewRecorder()
	gw.Handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Contains(t, rr.Body.String(), "method GET is not allowed")
}

func TestGatewayOperationName(t *testing.T) {
	gw := newTestGateway(t, nil, &fakeProvider{count: 4})

	body := `{"query": "query Count { user_count } query Users { users { email } }"%s}`

	res := query(t, gw, sprintf(body, ""))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "many queries provided, but no operationName", res.Errors[0].Message)
	assert.Equal(t, gqlerrors.ValidationFailedError, res.Errors[0].Extensions["code"])

	res = query(t, gw, sprintf(body, `, "operationName": "Missing"`))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "unable to extract query for operation Missing", res.Errors[0].Message)

	res = query(t, gw, sprintf(body, `, "operationName": "Count"`))
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]interface{}{"user_count": float64(4)}, res.Data)
}

func TestGatewayBatch(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer countries.Close()

	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{count: 5})

	rr := post(t, gw.Handler, `[
		{"query": "{ user_count }"},
		{"query": "{ countries { code } }"},
		{"query": "{ nope }"}
	]`)
	require.Equal(t, http.StatusOK, rr.Code)

	var res []testResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res, 3)
	assert.Equal(t, map[string]interface{}{"user_count": float64(5)}, res[0].Data)
	assert.Len(t, res[1].Data["countries"], 2)
	assert.NotEmpty(t, res[2].Errors)
}

func TestGatewayIntrospection(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer countries.Close()

	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{})

	res := query(t, gw, `{"query": "{ __typename __schema { queryType { name } mutationType { name } } user: __type(name: \"user\") { name kind } }"}`)
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]interface{}{
		"__typename": "Query",
		"__schema": map[string]interface{}{
			"queryType":    map[string]interface{}{"name": "Query"},
			"mutationType": map[string]interface{}{"name": "Mutation"},
		},
		"user": map[string]interface{}{"name": "user", "kind": "OBJECT"},
	}, res.Data)
	assert.Equal(t, 0, countries.Calls())
}

func TestGatewayMutationForwarding(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, func(req *requests.Request) *requests.Response {
		return &requests.Response{Data: map[string]interface{}{
			"renameCountry": map[string]interface{}{"name": req.Variables["name"]},
		}}
	})
	defer countries.Close()

	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{})

	res := query(t, gw, `{
		"query": "mutation Rename($code: ID!, $name: String!) { renameCountry(code: $code, name: $name) { name } }",
		"variables": {"code": "EE", "name": "Eesti"},
		"operationName": "Rename"
	}`)
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]interface{}{"renameCountry": map[string]interface{}{"name": "Eesti"}}, res.Data)

	received := countries.Received()
	require.Len(t, received, 1)
	require.NotNil(t, received[0].OperationName)
	assert.Equal(t, "Rename", *received[0].OperationName)
	assert.Equal(t, map[string]interface{}{"code": "EE", "name": "Eesti"}, received[0].Variables)
}

func TestGatewayForwardHeaders(t *testing.T) {
	countries := graphqltest.NewService(countriesSDL, graphqltest.StaticData(countriesData))
	defer countries.Close()

	gw := newTestGateway(t, []string{countries.URL}, &fakeProvider{},
		WithRemoteOptions(remote.WithMiddlewares(queryer.ForwardHeaders("Authorization"))),
	)

	query(t, gw, `{"query": "{ countries { code } }"}`, "Authorization", "Bearer token", "X-Other", "dropped")

	received := countries.Received()
	require.Len(t, received, 1)
	assert.Equal(t, "Bearer token", received[0].Original.Header.Get("Authorization"))
	assert.Empty(t, received[0].Original.Header.Get("X-Other"))
}

func TestGatewayRemoteBuilder(t *testing.T) {
	var built []string
	builder := func(_ context.Context, endpoint string) (executable.Schema, error) {
		built = append(built, endpoint)
		return nil, errors.New("unreachable")
	}

	_, err := buildTestGateway([]string{"http://a"}, &fakeProvider{}, WithRemoteBuilder(builder))
	assert.EqualError(t, err, "unable to introspect remote schemas: unreachable")
	assert.Equal(t, []string{"http://a"}, built)
}

func TestGatewayIntrospectionTimeout(t *testing.T) {
	release := make(chan struct{})
	hanging := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer hanging.Close()
	defer close(release)

	start := time.Now()
	_, err := buildTestGateway([]string{hanging.URL}, &fakeProvider{}, WithIntrospectionTimeout(50*time.Millisecond))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var ierr *gqlerrors.IntrospectionError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, hanging.URL, ierr.Endpoint)
}

func TestGatewayIntrospectionDeadline(t *testing.T) {
	var deadline time.Time
	var bounded bool
	builder := func(ctx context.Context, _ string) (executable.Schema, error) {
		deadline, bounded = ctx.Deadline()
		return nil, errors.New("unreachable")
	}

	start := time.Now()
	_, err := buildTestGateway([]string{"http://a"}, &fakeProvider{}, WithRemoteBuilder(builder))
	require.Error(t, err)
	require.True(t, bounded)
	assert.WithinDuration(t, start.Add(DefaultIntrospectionTimeout), deadline, time.Second)

	_, err = buildTestGateway([]string{"http://a"}, &fakeProvider{},
		WithRemoteBuilder(builder),
		WithIntrospectionTimeout(0),
	)
	require.Error(t, err)
	assert.False(t, bounded, "zero timeout leaves introspection unbounded")

	_, err = buildTestGateway([]string{"http://a"}, &fakeProvider{},
		WithRemoteBuilder(func(ctx context.Context, _ string) (executable.Schema, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
		WithIntrospectionTimeout(20*time.Millisecond),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestGatewayExecute(t *testing.T) {
	gw := newTestGateway(t, nil, &fakeProvider{count: 8})

	res := gw.Execute(context.Background(), &requests.Request{Query: "{ user_count }"})
	assert.Empty(t, res.Errors)
	assert.Equal(t, map[string]interface{}{"user_count": 8}, res.Data)

	res = gw.Execute(context.Background(), &requests.Request{Query: "subscription { anything }"})
	assert.Nil(t, res.Data)
	assert.NotEmpty(t, res.Errors)
}
