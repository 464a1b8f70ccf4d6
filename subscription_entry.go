package mosaic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/buildbuildio/mosaic/executable"
	"github.com/buildbuildio/mosaic/requests"
)

var (
	errMissingPayload        = errors.New("start message has no payload")
	errTooManyRootOperations = errors.New("subscription must select a single remote root field")
)

type subscriptionEntry struct {
	id string

	// closeCh tells both Listen and the subscriber to stop
	closeCh   chan struct{}
	closeOnce sync.Once
	// respCh is owned by the subscriber, which closes it when done
	respCh chan *requests.Response
}

func (g *Gateway) startSubscription(ctx context.Context, id string, request *requests.Request) (*subscriptionEntry, error) {
	step, err := g.planSubscription(request)
	if err != nil {
		return nil, err
	}

	subscriber, ok := g.schemas[step.Owner].(executable.Subscriber)
	if !ok {
		return nil, fmt.Errorf("schema %s does not serve subscriptions", step.Owner)
	}

	subEntry := &subscriptionEntry{
		id:      id,
		closeCh: make(chan struct{}),
		respCh:  make(chan *requests.Response),
	}

	req := executable.NewRequest(step.Operation, request.Variables)
	if err := subscriber.Subscribe(ctx, req, subEntry.closeCh, subEntry.respCh); err != nil {
		subEntry.Close()
		return nil, err
	}

	return subEntry, nil
}

// Close stops the subscription, it's safe to call more than once
func (se *subscriptionEntry) Close() {
	se.closeOnce.Do(func() {
		close(se.closeCh)
	})
}

// Listen forwards subscription data to w until the source or the client
// is done
func (se *subscriptionEntry) Listen(w *connWriter) {
	defer se.Close()

	for {
		select {
		case resp, ok := <-se.respCh:
			if !ok {
				_ = w.WriteJSON(requests.ServerSubMsg{ID: se.id, Type: requests.SubComplete})
				return
			}
			if resp == nil {
				continue
			}
			if err := w.WriteJSON(requests.ServerSubMsg{
				ID:      se.id,
				Type:    requests.SubData,
				Payload: resp,
			}); err != nil {
				return
			}
		case <-se.closeCh:
			return
		}
	}
}
