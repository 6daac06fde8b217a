package module

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/modkit-go/modkit/internal/handler"
)

// allowedMethods are the HTTP methods an endpoint declaration may use.
var allowedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// ExtractController builds a ControllerRecord from a loaded unit of kind
// Controller. Endpoints are emitted in declaration order; each handler
// reference is resolved against the catalog, and an unresolved reference
// fails the whole extraction so a half-wired controller is never
// registered.
func ExtractController(u *Unit, catalog *handler.Catalog) (*ControllerRecord, error) {
	if u.Descriptor == nil || u.Descriptor.Kind != KindController {
		return nil, fmt.Errorf("%s: unit is not a controller", u.Path)
	}
	payload := u.Descriptor.Controller

	endpoints := make([]EndpointRecord, 0, len(payload.Endpoints))
	for _, ep := range payload.Endpoints {
		if !allowedMethods[ep.Method] {
			return nil, fmt.Errorf("%s: endpoint %q: unsupported method %q", u.Path, ep.Name, ep.Method)
		}
		fn, ok := catalog.Resolve(ep.Handler)
		if !ok {
			return nil, fmt.Errorf("%s: endpoint %q: unknown handler %q", u.Path, ep.Name, ep.Handler)
		}
		endpoints = append(endpoints, EndpointRecord{
			Name:        ep.Name,
			Method:      ep.Method,
			Pattern:     joinPattern(payload.BasePath, ep.Path),
			HandlerName: ep.Handler,
			Handler:     fn,
			CacheTTL:    ep.CacheTTL,
		})
	}

	return &ControllerRecord{
		ID:         uuid.New().String(),
		Name:       payload.Name,
		Path:       u.Path,
		BasePath:   payload.BasePath,
		Middleware: append([]string(nil), payload.Middleware...),
		Endpoints:  endpoints,
		Generation: u.Generation,
	}, nil
}

// joinPattern joins a controller base path and an endpoint path into a
// single chi route pattern.
func joinPattern(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" || path == "/" {
		if base == "" {
			return "/"
		}
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
