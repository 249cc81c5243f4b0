// Package toolregistry is the tool-calling surface: a descriptor+schema
// registry plus a concurrency-bounded executor that dispatches validated
// tool calls to their handlers.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/stockgateway/stockgateway/internal/gatewayerr"
	"github.com/stockgateway/stockgateway/internal/models"
)

// Handler executes one tool invocation against validated arguments and
// returns the content that will be packed into a models.ToolResult.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

type registered struct {
	descriptor models.ToolDescriptor
	schema     *jsonschema.Schema
	handler    Handler
}

// Registry holds every tool the orchestrator may dispatch to, keyed by
// name, with its compiled JSON Schema cached at registration time rather
// than recompiled per call.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registered
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registered)}
}

// Register compiles the descriptor's schema and adds the tool under its
// name, replacing any prior registration of the same name.
func (r *Registry) Register(desc models.ToolDescriptor, handler Handler) error {
	compiled, err := compileSchema(desc.Name, desc.Schema)
	if err != nil {
		return fmt.Errorf("compile schema for tool %q: %w", desc.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[desc.Name] = &registered{descriptor: desc, schema: compiled, handler: handler}
	return nil
}

func compileSchema(name string, schema json.RawMessage) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name+".schema.json", jsonschemaResource(schema)); err != nil {
		return nil, err
	}
	return c.Compile(name + ".schema.json")
}

// jsonschemaResource decodes raw schema bytes into the any the v5 compiler
// expects from AddResource.
func jsonschemaResource(schema json.RawMessage) any {
	var v any
	if err := json.Unmarshal(schema, &v); err != nil {
		return map[string]any{}
	}
	return v
}

// Descriptors returns the descriptor for each name; names not registered
// are skipped.
func (r *Registry) Descriptors(names []string) []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(names))
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			out = append(out, t.descriptor)
		}
	}
	return out
}

// All returns every registered descriptor.
func (r *Registry) All() []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.descriptor)
	}
	return out
}

// Get returns the descriptor for a single tool.
func (r *Registry) Get(name string) (models.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return models.ToolDescriptor{}, false
	}
	return t.descriptor, true
}

// Invoke validates args against the tool's schema (when one is set) and
// runs its handler. Unknown tools surface as NotFound; schema failures as
// ToolArgInvalid, both inspectable via gatewayerr.KindOf.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", gatewayerr.New(gatewayerr.NotFound, "unknown tool: "+name, nil)
	}

	if t.schema != nil {
		var decoded any
		if err := json.Unmarshal(args, &decoded); err != nil {
			return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "tool arguments not valid JSON", err)
		}
		if err := t.schema.Validate(decoded); err != nil {
			return "", gatewayerr.New(gatewayerr.ToolArgInvalid, "tool arguments failed schema validation", err)
		}
	}

	content, err := t.handler(ctx, args)
	if err != nil {
		return "", err
	}
	return models.CapResult(content), nil
}
