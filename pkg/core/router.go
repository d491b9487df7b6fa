package core

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-ipcm/pkg/codec"
	"github.com/joeydtaylor/steeze-ipcm/pkg/kipcm"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/auth"
	"github.com/joeydtaylor/steeze-ipcm/pkg/middleware/logger"
	hmetrics "github.com/joeydtaylor/steeze-ipcm/pkg/middleware/metrics"
	httpx "github.com/joeydtaylor/steeze-ipcm/pkg/transport/httpx"
	"go.uber.org/zap"
)

type BuildDeps struct {
	Manager *kipcm.Manager
	Auth    *auth.Middleware
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
	Codec   codec.Codec
	Log     *zap.Logger

	// RequireAuth guards every mutating route with the admin role.
	RequireAuth bool
}

// BuildRouter mounts the admin API on d.Router.
func BuildRouter(d BuildDeps) http.Handler {
	if d.Codec == nil {
		d.Codec = codec.JSONStrict
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}

	r := d.Router
	r.Use(chimd.RequestID, chimd.Recoverer, chimd.Heartbeat("/ping"))
	if d.Auth != nil {
		r.Use(d.Auth.Middleware())
		if d.LogMW != nil {
			r.Use(d.LogMW.Middleware(d.Auth))
		}
		// metrics collector that references auth state without copying it
		r.Use(hmetrics.Collect(d.Auth))
	} else {
		if d.LogMW != nil {
			r.Use(d.LogMW.Middleware(nil))
		}
		r.Use(hmetrics.Collect(nil))
	}

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	a := &admin{m: d.Manager, codec: d.Codec, log: d.Log}
	mut := r
	if d.RequireAuth {
		mut = r.With(guard(d.Auth))
	}

	r.Get("/factories", a.listFactories)
	r.Get("/ipcps", a.listIPCPs)
	mut.Post("/ipcps", a.createIPCP)
	mut.Delete("/ipcps/{id}", a.destroyIPCP)
	mut.Put("/ipcps/{id}/config", a.configureIPCP)
	r.Get("/flows", a.listFlows)
	mut.Post("/flows", a.addFlow)
	r.Get("/flows/{port}", a.getFlow)
	mut.Delete("/flows/{port}", a.removeFlow)
	mut.Post("/flows/{port}/sdus", a.postSDU)
	mut.Get("/flows/{port}/sdus", a.readSDU)
	mut.Post("/flows/{port}/write", a.writeSDU)
	mut.Post("/notify/allocate-flow-request", a.notifyAllocateFlowRequest)
	return r.Mux()
}

// guard admits only admins. Without auth middleware it rejects everyone.
func guard(a *auth.Middleware) func(http.Handler) http.Handler {
	if a == nil {
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
			})
		}
	}
	return a.RequireAdmin
}
