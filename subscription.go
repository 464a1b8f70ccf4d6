package mosaic

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/planner"
	"github.com/buildbuildio/mosaic/queryer"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/vektah/gqlparser/v2"
)

var heartbeatInterval = time.Second * 4

// connWriter serializes frames written to a websocket connection by the
// read loop, the heartbeat and every subscription listener
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *connWriter) WriteJSON(msg interface{}) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	return wsutil.WriteServerText(w.conn, b)
}

// WriteClose sends a normal closure frame
func (w *connWriter) WriteClose() error {
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	frame := ws.NewCloseFrame(body)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ws.WriteHeader(w.conn, frame.Header); err != nil {
		return err
	}
	_, err := w.conn.Write(body)
	return err
}

type subscriptionDict map[string]*subscriptionEntry

func (sd subscriptionDict) Clean(key string) {
	if subEntry, ok := sd[key]; ok {
		subEntry.Close()
		delete(sd, key)
	}
}

func (sd subscriptionDict) CleanAll() {
	for key := range sd {
		sd.Clean(key)
	}
}

func sendHeartbeat(w *connWriter, closeCh <-chan struct{}) error {
	timeTicker := time.NewTicker(heartbeatInterval)
	defer timeTicker.Stop()

	for {
		select {
		case <-timeTicker.C:
			if err := w.WriteJSON(requests.ServerSubMsg{Type: requests.SubConnectionKeepAlive}); err != nil {
				return err
			}
		case <-closeCh:
			return nil
		}
	}
}

func writeSubError(w *connWriter, id string, err error) error {
	return w.WriteJSON(requests.ServerSubErrorMsg{
		ID:      id,
		Type:    requests.SubError,
		Payload: gqlerrors.FormatError(err),
	})
}

func (g *Gateway) subscriptionHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := ws.HTTPUpgrader{
		Timeout: time.Second * 60,
		Protocol: func(subprotocol string) bool {
			return subprotocol == "graphql-ws"
		},
	}

	conn, _, _, err := upgrader.Upgrade(r, w)
	if err != nil {
		g.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	ctx := queryer.WithInboundHeaders(r.Context(), r.Header)

	cw := &connWriter{conn: conn}

	subDict := make(subscriptionDict)

	closeCh := make(chan struct{})

	defer func() {
		// gracefully close connection
		_ = cw.WriteClose()

		close(closeCh)

		// close all running handlers
		subDict.CleanAll()

		conn.Close()
	}()

	for {
		msg, err := wsutil.ReadClientText(conn)
		if err != nil {
			return
		}

		var subMsg requests.ClientSubMsg
		if err := json.Unmarshal(msg, &subMsg); err != nil {
			return
		}

		switch subMsg.Type {
		// When the GraphQL WS connection is initiated, send an ACK back
		case requests.SubConnectionInit:
			if err := cw.WriteJSON(requests.ServerSubMsg{Type: requests.SubConnectionAck}); err != nil {
				return
			}
			// start sending heartbeat
			go func() { _ = sendHeartbeat(cw, closeCh) }()

		// Let event handlers deal with starting operations
		case requests.SubStart:
			request := subMsg.Payload
			if request == nil {
				if err := writeSubError(cw, subMsg.ID, errMissingPayload); err != nil {
					return
				}
				continue
			}
			request.Original = r

			subEntry, err := g.startSubscription(ctx, subMsg.ID, request)
			if err != nil {
				g.logger.WithError(err).WithField("id", subMsg.ID).Debug("subscription not started")
				if err := writeSubError(cw, subMsg.ID, err); err != nil {
					return
				}
				continue
			}

			// restarting an id replaces previous subscription
			subDict.Clean(subMsg.ID)
			subDict[subMsg.ID] = subEntry

			go subEntry.Listen(cw)

		// Stop running operations
		case requests.SubStop:
			subDict.Clean(subMsg.ID)

		// When the GraphQL WS connection is terminated by the client,
		// close the connection and close all the running operations
		case requests.SubConnectionTerminate:
			subDict.CleanAll()
			return

		default:
			g.logger.WithField("message", string(msg)).Warn("unknown graphql-ws message")
		}
	}
}

// planSubscription validates request and returns the single step serving it
func (g *Gateway) planSubscription(request *requests.Request) (*planner.QueryPlanStep, error) {
	query, qerr := gqlparser.LoadQuery(g.schema, request.Query)
	if qerr != nil {
		return nil, qerr
	}

	operation, err := getOperation(query, request)
	if err != nil {
		return nil, gqlerrors.NewError(gqlerrors.ValidationFailedError, err)
	}

	plan, err := g.planner.Plan(&planner.PlanningContext{
		Request:   request,
		Operation: operation,
		Schema:    g.schema,
		Owners:    g.owners,
	})
	if err != nil {
		return nil, gqlerrors.NewError(gqlerrors.ValidationFailedError, err)
	}

	if len(plan.Steps) != 1 || plan.Steps[0].IsInternal() {
		return nil, gqlerrors.NewError(gqlerrors.ValidationFailedError, errTooManyRootOperations)
	}

	return plan.Steps[0], nil
}
