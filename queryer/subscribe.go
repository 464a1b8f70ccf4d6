package queryer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var subscribeDialTimeout = time.Second

func websocketURL(raw string) (string, error) {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	switch parsedURL.Scheme {
	case "https", "wss":
		parsedURL.Scheme = "wss"
	default:
		parsedURL.Scheme = "ws"
	}

	return parsedURL.String(), nil
}

// Subscribe opens a graphql-ws connection to the service and streams data messages to resCh.
// Subscribe owns resCh: it is closed once the remote side is done or closeCh is closed,
// and no message is sent on it after closeCh is closed.
func (q *HTTPQueryer) Subscribe(ctx context.Context, req *requests.Request, closeCh <-chan struct{}, resCh chan *requests.Response) error {
	r, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url, nil)
	if err != nil {
		return &gqlerrors.TransportError{Endpoint: q.url, Err: err}
	}
	for _, mw := range q.mdwares {
		if err := mw(r); err != nil {
			return err
		}
	}

	dialer := ws.Dialer{
		Timeout:   subscribeDialTimeout,
		Protocols: []string{"graphql-ws"},
		Header:    ws.HandshakeHeaderHTTP(r.Header),
	}

	wsURL, err := websocketURL(q.url)
	if err != nil {
		return &gqlerrors.TransportError{Endpoint: q.url, Err: err}
	}

	conn, _, _, err := dialer.Dial(ctx, wsURL)
	if err != nil {
		return &gqlerrors.TransportError{Endpoint: q.url, Err: err}
	}

	errCh := make(chan error, 1)
	doneCh := make(chan struct{})

	// unblocks the reader below when the client goes away
	go func() {
		select {
		case <-closeCh:
		case <-ctx.Done():
		case <-doneCh:
		}
		conn.Close()
	}()

	deliver := func(resp *requests.Response) bool {
		select {
		case resCh <- resp:
			return true
		case <-closeCh:
			return false
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(resCh)
		defer close(doneCh)

		send := func(msg requests.ClientSubMsg) error {
			b, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			return wsutil.WriteClientText(conn, b)
		}

		if err := send(requests.ClientSubMsg{Type: requests.SubConnectionInit}); err != nil {
			errCh <- err
			return
		}

		if err := send(requests.ClientSubMsg{Type: requests.SubStart, ID: "1", Payload: req}); err != nil {
			errCh <- err
			return
		}

		errCh <- nil

		for {
			msg, err := wsutil.ReadServerText(conn)
			if err != nil {
				return
			}

			var serverResp requests.ServerSubMsg
			if err := json.Unmarshal(msg, &serverResp); err != nil {
				// try to unmarshal as error msg
				var serverErrorResp requests.ServerSubErrorMsg
				if innerErr := json.Unmarshal(msg, &serverErrorResp); innerErr != nil {
					return
				}
				if !deliver(&requests.Response{Errors: serverErrorResp.Payload}) {
					return
				}
				continue
			}

			switch serverResp.Type {
			case requests.SubComplete,
				requests.SubConnectionError,
				requests.SubConnectionTerminate,
				requests.SubError:
				return
			case requests.SubData:
				if !deliver(serverResp.Payload) {
					return
				}
			}
		}
	}()

	if err := <-errCh; err != nil {
		return &gqlerrors.TransportError{Endpoint: q.url, Err: err}
	}

	return nil
}
