package requests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// MaxBodyBytes bounds the size of a POST body accepted by Parse
var MaxBodyBytes int64 = 8 << 20

var errMissingQuery = errors.New("missing query from request")

// Request is a single graphql operation as sent over http
type Request struct {
	Original      *http.Request          `json:"-"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName *string                `json:"operationName"`
}

// Envelope holds every operation of one http body. Batched is set when the
// body was a json array, responses then have to be sent back as an array too.
type Envelope struct {
	Requests []*Request
	Batched  bool
}

// Parse reads {query, variables, operationName} from a POST body holding
// either a single object or a list of them.
func Parse(r *http.Request) (*Envelope, error) {
	if r.Method != http.MethodPost {
		return nil, errors.New("only POST requests are supported")
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("invalid content-type: %s", ct)
		}
		switch mediaType {
		case "application/json", "application/graphql+json", "text/plain":
		default:
			return nil, fmt.Errorf("unknown content-type: %s", mediaType)
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("encountered error reading body: %s", err)
	}
	if int64(len(body)) > MaxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", MaxBodyBytes)
	}

	env, err := Decode(body)
	if err != nil {
		return nil, err
	}
	for _, req := range env.Requests {
		req.Original = r
	}
	return env, nil
}

// Decode parses a raw body. Every operation must carry a query.
func Decode(body []byte) (*Envelope, error) {
	env := &Envelope{Batched: isBatch(body)}

	if env.Batched {
		if err := json.Unmarshal(body, &env.Requests); err != nil {
			return nil, fmt.Errorf("unable to parse batch request: %s", err)
		}
		if len(env.Requests) == 0 {
			return nil, errors.New("empty batch")
		}
	} else {
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("unable to parse request: %s", err)
		}
		env.Requests = []*Request{&req}
	}

	for _, req := range env.Requests {
		if req == nil || req.Query == "" {
			return nil, errMissingQuery
		}
	}
	return env, nil
}

// isBatch looks at the first non blank byte
func isBatch(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
