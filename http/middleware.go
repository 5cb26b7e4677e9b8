package http

import (
	"context"
	"net/http"

	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceOperation = "spatialid"

type clientIDKey struct{}

// HandleWithCORS allows the handler to be called from browsers.
func HandleWithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+
			httpcmn.HeaderPosemeshClientID+", traceparent, tracestate, baggage")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// HandleWithClientID attaches the caller client ID to the request context.
// Requests without a client ID header get a random one, echoed in the
// response header.
func HandleWithClientID(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := r.Header.Get(httpcmn.HeaderPosemeshClientID)
		if clientID == "" {
			clientID = uuid.NewString()
		}
		w.Header().Set(httpcmn.HeaderPosemeshClientID, clientID)

		ctx := context.WithValue(r.Context(), clientIDKey{}, clientID)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientID returns the client ID attached by HandleWithClientID.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

// HandleWithTracing continues the trace propagated by the caller and wraps
// the request in a server span named after its route.
func HandleWithTracing(h http.Handler) http.Handler {
	tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace.SpanFromContext(r.Context()).
			SetAttributes(attribute.String("client.id", ClientID(r.Context())))
		h.ServeHTTP(w, r)
	})

	return otelhttp.NewHandler(tagged, serviceOperation,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + route(r.URL.Path)
		}),
	)
}
