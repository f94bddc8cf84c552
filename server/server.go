// Package server exposes the resolution and routing operations over HTTP.
package server

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"net/http"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/mapfold/geograph/graph"
	"github.com/mapfold/geograph/overture"
	"github.com/mapfold/geograph/routing"
	"github.com/mapfold/geograph/spatial"
)

const MaxBodySize = 32 * 1000 * 1000 // 32MB

// Run serves until the context is cancelled, then shuts down gracefully.
func Run(ctx context.Context, address string, source overture.Source, store graph.Store) error {
	log := slog.Default()

	s := &server{
		source:   source,
		store:    store,
		linker:   spatial.NewLinker(source, store),
		resolver: routing.NewResolver(store),
	}

	r := router.New()
	r.POST("/route/shortest-path", s.ShortestPathHandler)
	r.GET("/network/status/{region}", s.NetworkStatusHandler)
	r.POST("/network/load", s.NetworkLoadHandler)
	r.POST("/resolve", s.ResolveHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	httpServer := &fasthttp.Server{
		ReadTimeout:        time.Second * 5,
		MaxRequestBodySize: MaxBodySize,
		Handler:            r.Handler,
	}

	go func() {
		log.Info("Server listening", "address", address)
		if err := httpServer.ListenAndServe(address); err != nil && err != http.ErrServerClosed {
			stdlog.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return httpServer.ShutdownWithContext(shutdownCtx)
}

type server struct {
	source   overture.Source
	store    graph.Store
	linker   *spatial.Linker
	resolver *routing.Resolver
}

var (
	metricRouteCallCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geograph",
		Subsystem: "http_route",
		Name:      "call_count",
		Help:      "count of shortest-path queries",
	})
	metricRouteNotFoundCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geograph",
		Subsystem: "http_route",
		Name:      "not_found_count",
		Help:      "count of shortest-path queries with no connecting path",
	})
	metricResolveCallCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geograph",
		Subsystem: "http_resolve",
		Name:      "call_count",
		Help:      "count of point resolution requests",
	})
	metricResolvedPoints = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geograph",
		Subsystem: "http_resolve",
		Name:      "points_total",
		Help:      "count of points submitted for resolution",
	})
	metricNetworkLoadCallCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geograph",
		Subsystem: "http_network",
		Name:      "load_call_count",
		Help:      "count of road network load requests",
	})
)

func writeJSONError(ctx *fasthttp.RequestCtx, status int, err error) {
	ctx.Response.SetStatusCode(status)
	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetBodyString(fmt.Sprintf(`{"error":%q}`, err.Error()))
}
