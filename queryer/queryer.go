package queryer

import (
	"context"

	"github.com/buildbuildio/mosaic/requests"
)

// Queryer is a transport link to a single graphql service
type Queryer interface {
	// Query sends inputs and returns one response per input in the same order.
	// Responses are returned as received, including graphql errors.
	Query(context.Context, []*requests.Request) ([]*requests.Response, error)
	Subscribe(context.Context, *requests.Request, <-chan struct{}, chan *requests.Response) error
	URL() string
}
