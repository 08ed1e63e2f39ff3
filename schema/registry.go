package schema

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is the immutable, process-wide set of schemas and resource
// types a server or client knows about. It is built at startup (core
// schemas plus anything added via AddSchema/AddResourceType); lookups
// take a read lock, so they are safe alongside those additions.
type Registry struct {
	mu        sync.RWMutex
	schemas   map[string]*Schema
	resTypes  map[string]*ResourceType // keyed by endpoint, e.g. "/Users"
}

// NewRegistry builds a Registry preloaded with the SCIM 1.0 core User and
// Group schemas and the Enterprise User extension.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		schemas:  make(map[string]*Schema),
		resTypes: make(map[string]*ResourceType),
	}

	for _, raw := range [][]byte{coreUserSchema, coreGroupSchema, enterpriseUserSchema} {
		sc, err := NewSchema(raw)
		if err != nil {
			return nil, fmt.Errorf("loading built-in schema: %w", err)
		}
		r.schemas[sc.Id] = sc
	}

	userRt, err := NewResourceType(userResourceType, r.schemas)
	if err != nil {
		return nil, fmt.Errorf("loading User resourceType: %w", err)
	}
	groupRt, err := NewResourceType(groupResourceType, r.schemas)
	if err != nil {
		return nil, fmt.Errorf("loading Group resourceType: %w", err)
	}

	r.resTypes[userRt.Endpoint] = userRt
	r.resTypes[groupRt.Endpoint] = groupRt

	return r, nil
}

// AddSchema registers an additional schema, e.g. one loaded from an
// operator-supplied config file. It is a startup-time error to register
// the same URN twice.
func (r *Registry) AddSchema(data []byte) (*Schema, error) {
	sc, err := NewSchema(data)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[sc.Id]; exists {
		return nil, fmt.Errorf("schema %s already registered", sc.Id)
	}
	r.schemas[sc.Id] = sc
	return sc, nil
}

// AddResourceType registers an additional resource type against the
// schemas already known to this registry.
func (r *Registry) AddResourceType(data []byte) (*ResourceType, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, err := NewResourceType(data, r.schemas)
	if err != nil {
		return nil, err
	}
	if _, exists := r.resTypes[rt.Endpoint]; exists {
		return nil, fmt.Errorf("resourceType endpoint %s already registered", rt.Endpoint)
	}
	r.resTypes[rt.Endpoint] = rt
	return rt, nil
}

// Schema looks up a schema by its URN.
func (r *Registry) Schema(urn string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.schemas[urn]
	return sc, ok
}

// ResourceType looks up a resource type by its endpoint ("/Users").
func (r *Registry) ResourceType(endpoint string) (*ResourceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.resTypes[endpoint]
	return rt, ok
}

// ResourceTypeByName looks up a resource type by its Name ("User"),
// rather than its endpoint, for callers (LDAP template loading, CLI
// tooling) that only have the short name on hand.
func (r *Registry) ResourceTypeByName(name string) (*ResourceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.resTypes {
		if strings.EqualFold(rt.Name, name) {
			return rt, true
		}
	}
	return nil, false
}

// ResourceTypes returns every registered resource type, used to render
// the /ResourceTypes endpoint and to scope the root-level /.search.
func (r *Registry) ResourceTypes() []*ResourceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ResourceType, 0, len(r.resTypes))
	for _, rt := range r.resTypes {
		out = append(out, rt)
	}
	return out
}

// Schemas returns every registered schema.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, 0, len(r.schemas))
	for _, sc := range r.schemas {
		out = append(out, sc)
	}
	return out
}
