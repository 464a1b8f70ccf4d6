package queryer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/buildbuildio/mosaic/gqlerrors"
	"github.com/buildbuildio/mosaic/metrics"
	"github.com/buildbuildio/mosaic/requests"
)

// sendQueryRequest is responsible for sending the provided payload to the designated URL
func (q *HTTPQueryer) sendQueryRequest(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return q.sendRequest(req)
}

func (q *HTTPQueryer) sendRequest(request *http.Request) ([]byte, error) {
	for _, mdware := range q.mdwares {
		if err := mdware(request); err != nil {
			return nil, err
		}
	}

	if q.client == nil {
		q.client = &http.Client{}
	}

	resp, err := q.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, fmt.Errorf("response was not successful with status code: %d", resp.StatusCode)
	}

	return body, nil
}

// fetch sends inputs in a single http request. Single input is sent as an object,
// several inputs are sent as a batch.
func (q *HTTPQueryer) fetch(ctx context.Context, inputs []*requests.Request) (res []*requests.Response, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveDelegatedRequest(q.url, err, time.Since(start))
	}()

	var payload interface{} = inputs
	if len(inputs) == 1 {
		payload = inputs[0]
	}

	bRs, err := json.Marshal(payload)
	if err != nil {
		return nil, &gqlerrors.TransportError{Endpoint: q.url, Err: err}
	}

	response, err := q.sendQueryRequest(ctx, bRs)
	if err != nil {
		return nil, &gqlerrors.TransportError{Endpoint: q.url, Err: err}
	}

	if len(inputs) == 1 {
		var single requests.Response
		if err := json.Unmarshal(response, &single); err != nil {
			return nil, &gqlerrors.TransportError{Endpoint: q.url, Err: fmt.Errorf("malformed response: %w", err)}
		}
		return []*requests.Response{&single}, nil
	}

	var results []*requests.Response
	if err := json.Unmarshal(response, &results); err != nil {
		return nil, &gqlerrors.TransportError{Endpoint: q.url, Err: fmt.Errorf("malformed batch response: %w", err)}
	}

	if len(results) != len(inputs) {
		return nil, &gqlerrors.TransportError{
			Endpoint: q.url,
			Err:      fmt.Errorf("expected %d responses in batch, got %d", len(inputs), len(results)),
		}
	}

	return results, nil
}
