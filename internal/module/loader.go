package module

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"go.uber.org/zap"
)

// ErrNotLoadable marks a file that is not a loadable module: a type
// declaration file, a file with no module block, or a block of a kind
// that cannot be registered. It is never fatal to the caller.
var ErrNotLoadable = errors.New("not a loadable module")

// moduleSuffix is the extension module files must carry.
const moduleSuffix = ".hcl"

// typeDeclSuffix marks schema-declaration files that are skipped without
// a parse attempt.
const typeDeclSuffix = ".types.hcl"

// IsTypeDecl reports whether path names a type-declaration file.
func IsTypeDecl(path string) bool {
	return strings.HasSuffix(path, typeDeclSuffix)
}

// Eligible reports whether path is a candidate module file.
func Eligible(path string) bool {
	return strings.HasSuffix(path, moduleSuffix) && !IsTypeDecl(path)
}

// moduleFile mirrors the top-level HCL structure of a module file.
type moduleFile struct {
	Controllers []controllerBlock `hcl:"controller,block"`
	Services    []serviceBlock    `hcl:"service,block"`
}

type controllerBlock struct {
	Name       string          `hcl:"name,label"`
	BasePath   string          `hcl:"base_path,optional"`
	Middleware []string        `hcl:"middleware,optional"`
	Endpoints  []endpointBlock `hcl:"endpoint,block"`
}

type endpointBlock struct {
	Name     string `hcl:"name,label"`
	Method   string `hcl:"method"`
	Path     string `hcl:"path"`
	Handler  string `hcl:"handler"`
	CacheTTL int    `hcl:"cache_ttl,optional"` // seconds
}

type serviceBlock struct {
	Name     string         `hcl:"name,label"`
	Settings hcl.Expression `hcl:"settings,optional"`
}

// Loader reads module files from disk and produces Units. The loader is
// deliberately cache-free: every Load call re-reads and re-parses the
// file, so a reload of a changed file always observes the new contents.
type Loader struct {
	log *zap.Logger
}

// NewLoader creates a Loader. The logger is required.
func NewLoader(log *zap.Logger) *Loader {
	return &Loader{log: log}
}

// Load reads the module file at path and extracts its descriptor.
// generation is the caller-supplied load counter for the path.
//
// Returns ErrNotLoadable (possibly wrapped) when the file is a type
// declaration or declares no module block. Parse and validation failures
// are returned as ordinary errors tied to this path; they must not
// affect sibling loads.
func (l *Loader) Load(path string, generation uint64) (*Unit, error) {
	if IsTypeDecl(path) {
		return nil, fmt.Errorf("%w: type declaration file %s", ErrNotLoadable, path)
	}

	// Fresh parser per call: hclparse caches file contents by path,
	// which would defeat hot reload.
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}

	var mf moduleFile
	if diags := gohcl.DecodeBody(file.Body, nil, &mf); diags.HasErrors() {
		return nil, fmt.Errorf("decode %s: %w", path, diags)
	}

	desc, err := descriptorFromFile(path, &mf)
	if err != nil {
		return nil, err
	}

	l.log.Debug("module loaded",
		zap.String("path", path),
		zap.Uint64("generation", generation),
		zap.Stringer("kind", desc.Kind))

	return &Unit{
		Path:       path,
		Generation: generation,
		Descriptor: desc,
	}, nil
}

// descriptorFromFile validates the block structure and builds the tagged
// descriptor. At most one module block may exist per file.
func descriptorFromFile(path string, mf *moduleFile) (*Descriptor, error) {
	total := len(mf.Controllers) + len(mf.Services)
	switch {
	case total == 0:
		return nil, fmt.Errorf("%w: no module block in %s", ErrNotLoadable, path)
	case total > 1:
		return nil, fmt.Errorf("%s declares %d module blocks, want exactly one", path, total)
	}

	if len(mf.Controllers) == 1 {
		payload, err := controllerPayload(path, &mf.Controllers[0])
		if err != nil {
			return nil, err
		}
		return &Descriptor{Kind: KindController, Controller: payload}, nil
	}

	payload, err := servicePayload(path, &mf.Services[0])
	if err != nil {
		return nil, err
	}
	return &Descriptor{Kind: KindService, Service: payload}, nil
}

func controllerPayload(path string, b *controllerBlock) (*ControllerPayload, error) {
	if b.Name == "" {
		return nil, fmt.Errorf("%s: controller name must not be empty", path)
	}

	endpoints := make([]EndpointPayload, 0, len(b.Endpoints))
	for _, ep := range b.Endpoints {
		if ep.CacheTTL < 0 {
			return nil, fmt.Errorf("%s: endpoint %q: cache_ttl must not be negative", path, ep.Name)
		}
		endpoints = append(endpoints, EndpointPayload{
			Name:     ep.Name,
			Method:   strings.ToUpper(ep.Method),
			Path:     ep.Path,
			Handler:  ep.Handler,
			CacheTTL: time.Duration(ep.CacheTTL) * time.Second,
		})
	}

	return &ControllerPayload{
		Name:       b.Name,
		BasePath:   b.BasePath,
		Middleware: b.Middleware,
		Endpoints:  endpoints,
	}, nil
}

// servicePayload evaluates the settings expression into a flat string
// map. Values are converted to string through cty so that numbers and
// booleans in the manifest come through unquoted.
func servicePayload(path string, b *serviceBlock) (*ServicePayload, error) {
	if b.Name == "" {
		return nil, fmt.Errorf("%s: service name must not be empty", path)
	}

	settings := map[string]string{}
	if b.Settings != nil {
		val, diags := b.Settings.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%s: evaluate settings: %w", path, diags)
		}
		if !val.IsNull() {
			if !val.Type().IsObjectType() && !val.Type().IsMapType() {
				return nil, fmt.Errorf("%s: settings must be an object", path)
			}
			for key, v := range val.AsValueMap() {
				sv, err := convert.Convert(v, cty.String)
				if err != nil {
					return nil, fmt.Errorf("%s: setting %q: %w", path, key, err)
				}
				if sv.IsNull() {
					continue
				}
				settings[key] = sv.AsString()
			}
		}
	}

	return &ServicePayload{Name: b.Name, Settings: settings}, nil
}
