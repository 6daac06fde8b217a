package module

import (
	"net/http"
	"time"
)

// Kind identifies what a loaded module file declares.
type Kind int

const (
	// KindController is a routable unit carrying endpoint declarations
	KindController Kind = iota
	// KindService is loaded for side effects only and never registered
	KindService
	// KindEndpoint is a single route declaration nested inside a controller
	KindEndpoint
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindController:
		return "controller"
	case KindService:
		return "service"
	case KindEndpoint:
		return "endpoint"
	default:
		return "unknown"
	}
}

// Descriptor is the tagged metadata variant extracted from a module file.
// Exactly one payload field is set, matching Kind.
type Descriptor struct {
	Kind       Kind
	Controller *ControllerPayload
	Service    *ServicePayload
}

// ControllerPayload holds a controller declaration and its endpoint
// declarations in file order.
type ControllerPayload struct {
	Name       string
	BasePath   string
	Middleware []string
	Endpoints  []EndpointPayload
}

// EndpointPayload is a single endpoint declaration inside a controller.
type EndpointPayload struct {
	Name     string
	Method   string
	Path     string
	Handler  string
	CacheTTL time.Duration
}

// ServicePayload holds a service declaration. Settings are merged into
// the application environment when the module is loaded.
type ServicePayload struct {
	Name     string
	Settings map[string]string
}

// Unit is the result of loading a single module file.
type Unit struct {
	// Path is the file the unit was loaded from
	Path string

	// Generation is the monotonically increasing load counter for Path.
	// The loader keeps no cache; the generation exists so that consumers
	// can tell a reload apart from the original load.
	Generation uint64

	Descriptor *Descriptor
}

// ControllerRecord is the registered form of a controller module. It is
// built once per successful load and immutable afterward.
type ControllerRecord struct {
	ID         string
	Name       string
	Path       string
	BasePath   string
	Middleware []string
	Endpoints  []EndpointRecord
	Generation uint64
}

// EndpointRecord is one resolved endpoint of a controller.
type EndpointRecord struct {
	Name        string
	Method      string
	Pattern     string
	HandlerName string
	Handler     http.HandlerFunc
	CacheTTL    time.Duration
}
