package mosaic

import (
	"encoding/json"
	"net/http"

	"github.com/buildbuildio/mosaic/metrics"
	"github.com/buildbuildio/mosaic/tracing"
)

// Routes returns the gateway handler on / and /graphql next to /metrics and
// /healthz. Websocket upgrades skip instrumentation as they live as long as
// the subscription does.
func (g *Gateway) Routes() http.Handler {
	graphql := tracing.Handler(metrics.InstrumentHandler(http.HandlerFunc(g.Handler)), "graphql")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", healthz)

	gql := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocketUpgrade(r) {
			g.Handler(w, r)
			return
		}
		graphql.ServeHTTP(w, r)
	})
	mux.Handle("/", gql)
	mux.Handle("/graphql", gql)

	return mux
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
