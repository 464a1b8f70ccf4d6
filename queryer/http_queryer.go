package queryer

import (
	"context"
	"net/http"

	"github.com/buildbuildio/mosaic/common"
	"github.com/buildbuildio/mosaic/requests"

	"github.com/samber/lo"
)

type chunkResponse struct {
	Index    int
	Response []*requests.Response
}

// RequestMiddleware are functions can be passed to Queryer to affect its internal behavior
type RequestMiddleware func(*http.Request) error

// HTTPQueryer sends graphql requests to a single service over http.
// Several inputs are batched into one network request up to maxBatchSize.
type HTTPQueryer struct {
	url     string
	client  *http.Client
	mdwares []RequestMiddleware

	maxBatchSize int
}

var _ Queryer = &HTTPQueryer{}

// NewHTTPQueryer returns a HTTPQueryer with the provided parameters
func NewHTTPQueryer(url string, maxBatchSize int) *HTTPQueryer {
	if maxBatchSize < 1 {
		maxBatchSize = 1
	}

	return &HTTPQueryer{
		url:          url,
		client:       &http.Client{},
		maxBatchSize: maxBatchSize,
	}
}

// WithMiddlewares lets the user assign middlewares to the queryer
func (q *HTTPQueryer) WithMiddlewares(mwares []RequestMiddleware) *HTTPQueryer {
	q.mdwares = mwares
	return q
}

// WithHTTPClient lets the user configure the client to use when making network requests
func (q *HTTPQueryer) WithHTTPClient(client *http.Client) *HTTPQueryer {
	q.client = client
	return q
}

func (q *HTTPQueryer) URL() string {
	return q.url
}

func (q *HTTPQueryer) Query(ctx context.Context, inputs []*requests.Request) ([]*requests.Response, error) {
	lInputs := len(inputs)
	if lInputs <= q.maxBatchSize {
		return q.fetch(ctx, inputs)
	}

	// divide into smaller batches
	chunks := (lInputs + q.maxBatchSize - 1) / q.maxBatchSize

	res, err := common.AsyncMapReduce(
		lo.Range(chunks),
		make([]*requests.Response, lInputs),
		func(i int) (*chunkResponse, error) {
			end := lo.Min([]int{(i + 1) * q.maxBatchSize, lInputs})

			res, err := q.fetch(ctx, inputs[i*q.maxBatchSize:end])
			if err != nil {
				return nil, err
			}

			return &chunkResponse{
				Index:    i,
				Response: res,
			}, nil
		},
		func(acc []*requests.Response, value *chunkResponse) []*requests.Response {
			copy(acc[value.Index*q.maxBatchSize:], value.Response)
			return acc
		},
	)

	if err != nil {
		return nil, err
	}

	return res, nil
}
