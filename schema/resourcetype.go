package schema

import (
	"encoding/json"
	"strings"
)

// SchemaExtension names an additional schema a ResourceType may carry,
// e.g. the Enterprise User extension on the core User resource.
type SchemaExtension struct {
	Schema   string `json:"schema"`
	Required bool   `json:"required"`
}

// ResourceType binds an endpoint ("/Users") to its main schema and any
// extension schemas, and records which attribute paths declare
// "returned": always/never/request.
type ResourceType struct {
	Id               string             `json:"id"`
	Name             string             `json:"name"`
	Endpoint         string             `json:"endpoint"`
	Description      string             `json:"description"`
	Schema           string             `json:"schema"`
	SchemaExtensions []*SchemaExtension `json:"schemaExtensions,omitempty"`

	schemas       map[string]*Schema
	AtsAlwaysRtn  map[string]bool
	AtsNeverRtn   map[string]bool
	AtsRequestRtn map[string]bool
}

// NewResourceType parses a resource-type definition and resolves its
// schema/extension URNs against the already-loaded schema set sm.
func NewResourceType(data []byte, sm map[string]*Schema) (*ResourceType, error) {
	rt := &ResourceType{}
	if err := json.Unmarshal(data, rt); err != nil {
		return nil, err
	}

	ve := &ValidationErrors{}

	rt.Name = strings.TrimSpace(rt.Name)
	if len(rt.Name) == 0 {
		ve.add("resourceType name cannot be empty")
	}

	rt.Endpoint = strings.TrimSpace(rt.Endpoint)
	if len(rt.Endpoint) == 0 {
		ve.add("resourceType endpoint cannot be empty")
	}

	rt.schemas = make(map[string]*Schema)

	rt.Schema = strings.TrimSpace(rt.Schema)
	if len(rt.Schema) == 0 {
		ve.add("resourceType schema cannot be empty")
	} else if sm[rt.Schema] == nil {
		ve.add("no schema registered for URN %s", rt.Schema)
	} else {
		mainSchema := sm[rt.Schema]
		addCommonAttrs(mainSchema)
		rt.schemas[rt.Schema] = mainSchema
	}

	for _, ext := range rt.SchemaExtensions {
		ext.Schema = strings.TrimSpace(ext.Schema)
		if len(ext.Schema) == 0 {
			ve.add("resourceType extension schema cannot be empty")
		} else if sm[ext.Schema] == nil {
			ve.add("no schema registered for extension URN %s", ext.Schema)
		} else {
			rt.schemas[ext.Schema] = sm[ext.Schema]
		}
	}

	if ve.Count > 0 {
		return nil, ve
	}

	rt.AtsAlwaysRtn = make(map[string]bool)
	rt.AtsNeverRtn = make(map[string]bool)
	rt.AtsRequestRtn = make(map[string]bool)
	for _, sc := range rt.schemas {
		indexReturnPolicy(rt, sc.Attributes, "")
	}

	return rt, nil
}

func indexReturnPolicy(rt *ResourceType, attrs []*AttrType, prefix string) {
	for _, at := range attrs {
		path := strings.ToLower(at.Name)
		if prefix != "" {
			path = prefix + "." + path
		}
		switch strings.ToLower(at.Returned) {
		case "always":
			rt.AtsAlwaysRtn[path] = true
		case "never":
			rt.AtsNeverRtn[path] = true
		case "request":
			rt.AtsRequestRtn[path] = true
		}
		if at.IsComplex() {
			indexReturnPolicy(rt, at.SubAttributes, path)
		}
	}
}

// addCommonAttrs injects the schemas/id/externalId/meta attributes that
// RFC 7643 §3.1 requires on every resource, when a schema file omits them.
func addCommonAttrs(sc *Schema) {
	if _, ok := sc.AttrMap["schemas"]; !ok {
		at := newAttrType()
		at.Name = "schemas"
		at.Required = true
		at.Returned = "always"
		at.MultiValued = true
		at.Mutability = "readonly"
		at.SchemaId = sc.Id
		sc.Attributes = append(sc.Attributes, at)
		sc.AttrMap["schemas"] = at
	}

	if _, ok := sc.AttrMap["id"]; !ok {
		at := newAttrType()
		at.Name = "id"
		at.Returned = "always"
		at.CaseExact = true
		at.Mutability = "readonly"
		at.SchemaId = sc.Id
		sc.Attributes = append(sc.Attributes, at)
		sc.AttrMap["id"] = at
	}

	if _, ok := sc.AttrMap["externalid"]; !ok {
		at := newAttrType()
		at.Name = "externalId"
		at.CaseExact = true
		at.SchemaId = sc.Id
		sc.Attributes = append(sc.Attributes, at)
		sc.AttrMap["externalid"] = at
	}

	if _, ok := sc.AttrMap["meta"]; !ok {
		meta := newAttrType()
		meta.Name = "meta"
		meta.Type = "complex"
		meta.Mutability = "readonly"
		meta.SchemaId = sc.Id
		meta.SubAttrMap = make(map[string]*AttrType)

		for _, name := range []string{"resourceType", "created", "lastModified", "location", "version"} {
			sub := newAttrType()
			sub.Name = name
			sub.Mutability = "readonly"
			sub.SchemaId = sc.Id
			sub.Parent = meta
			if name == "created" || name == "lastModified" {
				sub.Type = "datetime"
			}
			if name == "version" || name == "resourceType" {
				sub.CaseExact = true
			}
			meta.SubAttrMap[strings.ToLower(name)] = sub
			meta.SubAttributes = append(meta.SubAttributes, sub)
		}

		sc.Attributes = append(sc.Attributes, meta)
		sc.AttrMap["meta"] = meta
	}
}

// GetMainSchema returns the resource's primary (non-extension) schema.
func (rt *ResourceType) GetMainSchema() *Schema {
	return rt.schemas[rt.Schema]
}

// GetSchema returns the schema registered under urn, including extensions.
func (rt *ResourceType) GetSchema(urn string) *Schema {
	return rt.schemas[urn]
}

// GetAtType resolves an attribute path, optionally qualified with a
// "schema:attr.sub" URN prefix. An unqualified path is searched across
// every schema bound to this resource type.
func (rt *ResourceType) GetAtType(path string) (*AttrType, bool) {
	if colon := strings.LastIndex(path, ":"); colon > 0 {
		urn, rest := path[:colon], path[colon+1:]
		if sc, ok := rt.schemas[urn]; ok {
			return sc.GetAttr(rest)
		}
		return nil, false
	}

	for _, sc := range rt.schemas {
		if at, ok := sc.GetAttr(path); ok {
			return at, true
		}
	}
	return nil, false
}
