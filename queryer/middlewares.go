package queryer

import (
	"context"
	"net/http"
)

type inboundHeadersKey struct{}

// WithInboundHeaders stores headers of the client request in ctx, so
// ForwardHeaders can copy them to delegated requests
func WithInboundHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, inboundHeadersKey{}, h)
}

// ForwardHeaders copies named inbound headers to every outgoing request
func ForwardHeaders(names ...string) RequestMiddleware {
	return func(r *http.Request) error {
		inbound, ok := r.Context().Value(inboundHeadersKey{}).(http.Header)
		if !ok {
			return nil
		}

		for _, name := range names {
			if values := inbound.Values(name); len(values) > 0 {
				r.Header[http.CanonicalHeaderKey(name)] = values
			}
		}

		return nil
	}
}
