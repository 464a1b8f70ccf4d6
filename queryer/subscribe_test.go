package queryer

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFunc answers a start message, returned messages are written in order
type startFunc func(msg requests.ClientSubMsg) []interface{}

func newWSService(t *testing.T, onStart startFunc) (*httptest.Server, chan http.Header) {
	t.Helper()
	headers := make(chan http.Header, 1)

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := ws.HTTPUpgrader{
			Timeout: time.Minute,
			Protocol: func(subprotocol string) bool {
				return subprotocol == "graphql-ws"
			},
		}

		conn, _, _, err := upgrader.Upgrade(r, w)
		if err != nil {
			return
		}
		defer conn.Close()
		headers <- r.Header.Clone()

		for {
			raw, err := wsutil.ReadClientText(conn)
			if err != nil {
				return
			}

			var msg requests.ClientSubMsg
			if err := json.Unmarshal(raw, &msg); err != nil {
				return
			}

			var out []interface{}
			switch msg.Type {
			case requests.SubConnectionInit:
				out = []interface{}{requests.ServerSubMsg{Type: requests.SubConnectionAck}}
			case requests.SubStart:
				out = onStart(msg)
			}

			if !writeAll(conn, out) {
				return
			}
		}
	}))
	t.Cleanup(s.Close)

	return s, headers
}

func writeAll(conn net.Conn, msgs []interface{}) bool {
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return false
		}
		if err := wsutil.WriteServerText(conn, b); err != nil {
			return false
		}
	}
	return true
}

func receive(t *testing.T, resCh chan *requests.Response) *requests.Response {
	t.Helper()
	select {
	case res := <-resCh:
		return res
	case <-time.After(time.Second):
		require.FailNow(t, "timeout waiting for subscription message")
		return nil
	}
}

func TestSubscribeStreamsData(t *testing.T) {
	started := make(chan requests.ClientSubMsg, 1)
	s, headers := newWSService(t, func(msg requests.ClientSubMsg) []interface{} {
		started <- msg
		return []interface{}{
			requests.ServerSubMsg{ID: msg.ID, Type: requests.SubData, Payload: &requests.Response{
				Data: map[string]interface{}{"countryAdded": map[string]interface{}{"code": "EE"}},
			}},
			requests.ServerSubMsg{ID: msg.ID, Type: requests.SubData, Payload: &requests.Response{
				Data: map[string]interface{}{"countryAdded": map[string]interface{}{"code": "KE"}},
			}},
			requests.ServerSubMsg{ID: msg.ID, Type: requests.SubComplete},
		}
	})

	q := NewHTTPQueryer(s.URL, 1).WithMiddlewares([]RequestMiddleware{ForwardHeaders("Authorization")})

	inbound := http.Header{}
	inbound.Set("Authorization", "Bearer token")
	ctx := WithInboundHeaders(context.Background(), inbound)

	resCh := make(chan *requests.Response)
	err := q.Subscribe(ctx, &requests.Request{
		Query: "subscription { countryAdded { code } }",
	}, make(chan struct{}), resCh)
	require.NoError(t, err)

	first := receive(t, resCh)
	require.NotNil(t, first)
	assert.Equal(t, map[string]interface{}{"countryAdded": map[string]interface{}{"code": "EE"}}, first.Data)

	second := receive(t, resCh)
	require.NotNil(t, second)
	assert.Equal(t, map[string]interface{}{"countryAdded": map[string]interface{}{"code": "KE"}}, second.Data)

	assert.Nil(t, receive(t, resCh), "complete closes the channel")

	assert.Equal(t, "Bearer token", (<-headers).Get("Authorization"))
	startMsg := <-started
	require.NotNil(t, startMsg.Payload)
	assert.Equal(t, "subscription { countryAdded { code } }", startMsg.Payload.Query)
}

func TestSubscribeRemoteError(t *testing.T) {
	s, _ := newWSService(t, func(msg requests.ClientSubMsg) []interface{} {
		return []interface{}{requests.ServerSubErrorMsg{
			ID:      msg.ID,
			Type:    requests.SubError,
			Payload: gqlerrors.FormatError(errors.New("unknown field countryRemoved")),
		}}
	})

	resCh := make(chan *requests.Response)
	err := NewHTTPQueryer(s.URL, 1).Subscribe(context.Background(), &requests.Request{
		Query: "subscription { countryRemoved }",
	}, make(chan struct{}), resCh)
	require.NoError(t, err)

	res := receive(t, resCh)
	require.NotNil(t, res)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "unknown field countryRemoved", res.Errors[0].Message)
	assert.Nil(t, res.Data)
}

func TestSubscribeClose(t *testing.T) {
	s, _ := newWSService(t, func(requests.ClientSubMsg) []interface{} {
		return nil
	})

	closeCh := make(chan struct{})
	resCh := make(chan *requests.Response)
	err := NewHTTPQueryer(s.URL, 1).Subscribe(context.Background(), &requests.Request{
		Query: "subscription { countryAdded { code } }",
	}, closeCh, resCh)
	require.NoError(t, err)

	close(closeCh)
	assert.Nil(t, receive(t, resCh))
}

func TestSubscribeCloseWhileStreaming(t *testing.T) {
	s, _ := newWSService(t, func(msg requests.ClientSubMsg) []interface{} {
		out := make([]interface{}, 50)
		for i := range out {
			out[i] = requests.ServerSubMsg{ID: msg.ID, Type: requests.SubData, Payload: &requests.Response{
				Data: map[string]interface{}{"countryAdded": map[string]interface{}{"code": "EE"}},
			}}
		}
		return out
	})

	closeCh := make(chan struct{})
	resCh := make(chan *requests.Response)
	err := NewHTTPQueryer(s.URL, 1).Subscribe(context.Background(), &requests.Request{
		Query: "subscription { countryAdded { code } }",
	}, closeCh, resCh)
	require.NoError(t, err)

	require.NotNil(t, receive(t, resCh))
	close(closeCh)

	// the producer stops on its own and closes resCh
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-resCh:
			if !ok {
				return
			}
		case <-deadline:
			require.FailNow(t, "resCh was not closed after closeCh")
		}
	}
}

func TestSubscribeNoWebsocketSupport(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer s.Close()

	err := NewHTTPQueryer(s.URL, 1).Subscribe(context.Background(), &requests.Request{
		Query: "subscription { countryAdded { code } }",
	}, make(chan struct{}), make(chan *requests.Response))
	require.Error(t, err)

	var terr *gqlerrors.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, s.URL, terr.Endpoint)
}

func TestWebsocketURL(t *testing.T) {
	for in, expected := range map[string]string{
		"https://countries.trevorblades.com/": "wss://countries.trevorblades.com/",
		"http://localhost:4000/graphql":       "ws://localhost:4000/graphql",
		"wss://events:4000/graphql":           "wss://events:4000/graphql",
	} {
		u, err := websocketURL(in)
		require.NoError(t, err)
		assert.Equal(t, expected, u)
	}
}
