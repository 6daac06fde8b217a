// Package router maintains the live routing table built from registered
// controller records.
package router

import (
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/modkit-go/modkit/internal/module"
	"github.com/modkit-go/modkit/internal/web/cache"
	"github.com/modkit-go/modkit/internal/web/middleware"
)

// Router manages HTTP routing for registered controllers using chi.
//
// chi muxes cannot unregister individual routes, so the router rebuilds
// a fresh mux from the live controller set on every mutation and swaps
// it in under the lock. ServeHTTP always dispatches on the most recent
// mux.
type Router struct {
	mu          sync.RWMutex
	mux         chi.Router
	controllers map[string]*module.ControllerRecord // keyed by record ID

	table *middleware.Table
	store cache.Cache
	log   *zap.Logger
}

// RouteInfo provides metadata about a mounted route for introspection
type RouteInfo struct {
	Controller string
	Method     string
	Pattern    string
	Handler    string
	Middleware []string
}

// New creates a Router. store may be nil to disable response caching.
func New(log *zap.Logger, table *middleware.Table, store cache.Cache) *Router {
	r := &Router{
		controllers: make(map[string]*module.ControllerRecord),
		table:       table,
		store:       store,
		log:         log,
	}
	r.mux = r.build()
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	mux := r.mux
	r.mu.RUnlock()

	mux.ServeHTTP(w, req)
}

// AddController mounts all endpoints of a controller record. Called
// exactly once per successful load.
func (r *Router) AddController(rec *module.ControllerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.controllers[rec.ID] = rec
	r.mux = r.build()

	r.log.Info("controller registered",
		zap.String("controller", rec.Name),
		zap.String("path", rec.Path),
		zap.Int("endpoints", len(rec.Endpoints)))
}

// RemoveController unmounts a controller record. Removing a record the
// router has never seen is a safe no-op.
func (r *Router) RemoveController(rec *module.ControllerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.controllers[rec.ID]; !ok {
		return
	}
	delete(r.controllers, rec.ID)
	r.mux = r.build()

	r.log.Info("controller unregistered",
		zap.String("controller", rec.Name),
		zap.String("path", rec.Path))
}

// Routes returns the mounted routes for introspection, ordered by
// pattern then method.
func (r *Router) Routes() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var routes []RouteInfo
	for _, rec := range r.controllers {
		for _, ep := range rec.Endpoints {
			routes = append(routes, RouteInfo{
				Controller: rec.Name,
				Method:     ep.Method,
				Pattern:    ep.Pattern,
				Handler:    ep.HandlerName,
				Middleware: rec.Middleware,
			})
		}
	}

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Pattern != routes[j].Pattern {
			return routes[i].Pattern < routes[j].Pattern
		}
		return routes[i].Method < routes[j].Method
	})
	return routes
}

// build constructs a mux from the current controller set. Caller holds
// the lock.
func (r *Router) build() chi.Router {
	mux := chi.NewRouter()

	for _, rec := range r.controllers {
		chain, unknown := r.table.Chain(rec.Middleware)
		for _, name := range unknown {
			r.log.Warn("unknown middleware, skipping",
				zap.String("middleware", name),
				zap.String("controller", rec.Name))
		}

		for _, ep := range rec.Endpoints {
			handler := http.Handler(ep.Handler)
			if ep.CacheTTL > 0 && r.store != nil {
				handler = cache.Response(r.store, ep.CacheTTL)(handler)
			}
			handler = chain.Then(handler)

			mux.Method(ep.Method, ep.Pattern, handler)
		}
	}

	return mux
}
