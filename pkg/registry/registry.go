// Package registry loads the banking module catalogue: modules, their
// submodules and the entity properties the extraction prompt describes.
// A Registry is built once at startup and never mutated.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidRegistry = errors.New("invalid module registry")

type Registry struct {
	modules []Module
	byCode  map[string]int
}

func LoadModules(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module registry: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Registry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(documentSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegistry, strings.Join(msgs, "; "))
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	return New(f.Modules)
}

// New validates modules and builds a Registry over a private copy.
func New(modules []Module) (*Registry, error) {
	r := &Registry{
		modules: make([]Module, len(modules)),
		byCode:  make(map[string]int, len(modules)),
	}

	for i, m := range modules {
		if m.Code == "" {
			return nil, fmt.Errorf("%w: module %d has no code", ErrInvalidRegistry, i)
		}
		if _, dup := r.byCode[m.Code]; dup {
			return nil, fmt.Errorf("%w: duplicate module code %s", ErrInvalidRegistry, m.Code)
		}
		if len(m.Submodules) == 0 {
			return nil, fmt.Errorf("%w: module %s has no submodules", ErrInvalidRegistry, m.Code)
		}

		seen := make(map[string]bool, len(m.Submodules))
		for _, sm := range m.Submodules {
			if sm.Code == "" {
				return nil, fmt.Errorf("%w: module %s has a submodule without code", ErrInvalidRegistry, m.Code)
			}
			if seen[sm.Code] {
				return nil, fmt.Errorf("%w: duplicate submodule code %s in %s", ErrInvalidRegistry, sm.Code, m.Code)
			}
			seen[sm.Code] = true
		}

		r.modules[i] = copyModule(m)
		r.byCode[m.Code] = i
	}
	return r, nil
}

func copyModule(m Module) Module {
	out := m
	out.Submodules = append([]SubModule(nil), m.Submodules...)
	if m.Properties != nil {
		out.Properties = make(map[string]Property, len(m.Properties))
		for k, v := range m.Properties {
			v.Enum = append([]interface{}(nil), v.Enum...)
			out.Properties[k] = v
		}
	}
	return out
}

func (r *Registry) Module(code string) (Module, bool) {
	i, ok := r.byCode[code]
	if !ok {
		return Module{}, false
	}
	return copyModule(r.modules[i]), true
}

func (r *Registry) Has(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

func (r *Registry) SubModule(moduleCode, submoduleCode string) (SubModule, bool) {
	i, ok := r.byCode[moduleCode]
	if !ok {
		return SubModule{}, false
	}
	for _, sm := range r.modules[i].Submodules {
		if sm.Code == submoduleCode {
			return sm, true
		}
	}
	return SubModule{}, false
}

// Codes lists module codes in file order.
func (r *Registry) Codes() []string {
	codes := make([]string, len(r.modules))
	for i, m := range r.modules {
		codes[i] = m.Code
	}
	return codes
}

// Modules returns copies of every module in file order.
func (r *Registry) Modules() []Module {
	out := make([]Module, len(r.modules))
	for i, m := range r.modules {
		out[i] = copyModule(m)
	}
	return out
}
