// Package schema implements the SCIM 1.0 attribute-type model: the
// AttrType/Schema definitions loaded from RFC 7643-shaped JSON and the
// Registry that resolves schema URNs and resource types at runtime.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	logger "github.com/juju/loggo"
)

var log = logger.GetLogger("scimd.schema")

var (
	validTypes      = []string{"string", "boolean", "decimal", "integer", "datetime", "binary", "reference", "complex"}
	validMutability = []string{"readonly", "readwrite", "immutable", "writeonly"}
	validReturned   = []string{"always", "never", "default", "request"}
	validUniqueness = []string{"none", "server", "global"}
	validNameRegex  = regexp.MustCompile(`^[0-9A-Za-z_$-]+$`)
)

// AttrType mirrors the SCIM attribute characteristics of RFC 7643 §2.2 so
// that schema JSON files unmarshal directly into it.
type AttrType struct {
	Name            string      `json:"name"`
	Type            string      `json:"type"`
	Description     string      `json:"description"`
	CaseExact       bool        `json:"caseExact"`
	MultiValued     bool        `json:"multiValued"`
	Mutability      string      `json:"mutability"`
	Required        bool        `json:"required"`
	Returned        string      `json:"returned"`
	Uniqueness      string      `json:"uniqueness"`
	SubAttributes   []*AttrType `json:"subAttributes,omitempty"`
	ReferenceTypes  []string    `json:"referenceTypes,omitempty"`
	CanonicalValues []string    `json:"canonicalValues,omitempty"`

	SubAttrMap map[string]*AttrType `json:"-"`
	SchemaId   string               `json:"-"`
	Parent     *AttrType            `json:"-"`
}

// Schema is a single RFC 7643 schema definition (e.g. the core User schema).
type Schema struct {
	Id          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attributes  []*AttrType `json:"attributes"`

	AttrMap map[string]*AttrType `json:"-"`
}

func newAttrType() *AttrType {
	return &AttrType{Required: false, CaseExact: false, Mutability: "readWrite", Returned: "default", Uniqueness: "none", Type: "string"}
}

// NewSchema parses schema JSON data, fills in RFC 7643 §2.2 defaults and
// validates it, injecting the RFC 7643 §2.4 default sub-attributes
// (type/primary/display/value/$ref) into multi-valued complex attributes
// that don't declare them explicitly.
func NewSchema(data []byte) (*Schema, error) {
	sc := &Schema{}
	if err := json.Unmarshal(data, sc); err != nil {
		return nil, err
	}

	for _, at := range sc.Attributes {
		setAttrDefaults(at)
	}

	if err := validate(sc); err != nil {
		return nil, err
	}

	return sc, nil
}

func setAttrDefaults(attr *AttrType) {
	if len(attr.Mutability) == 0 {
		attr.Mutability = "readWrite"
	}
	if len(attr.Returned) == 0 {
		attr.Returned = "default"
	}
	if len(attr.Uniqueness) == 0 {
		attr.Uniqueness = "none"
	}
	if len(attr.Type) == 0 {
		attr.Type = "string"
	}
	for _, sa := range attr.SubAttributes {
		setAttrDefaults(sa)
	}
}

// ValidationErrors accumulates every schema-definition problem found
// rather than failing on the first one, matching the teacher's batch
// validation style so a schema author sees every mistake at once.
type ValidationErrors struct {
	Count int
	Msgs  []string
}

func (ve *ValidationErrors) Error() string {
	return fmt.Sprintf("%d schema validation errors: %v", ve.Count, ve.Msgs)
}

func (ve *ValidationErrors) add(format string, args ...interface{}) {
	ve.Count++
	ve.Msgs = append(ve.Msgs, fmt.Sprintf(format, args...))
}

func (attr *AttrType) IsComplex() bool {
	return strings.EqualFold(attr.Type, "complex")
}

func (attr *AttrType) IsReference() bool {
	return strings.EqualFold(attr.Type, "reference")
}

func (attr *AttrType) IsSimple() bool {
	return !attr.IsComplex() && !attr.IsReference()
}

func (attr *AttrType) IsReadOnly() bool {
	return strings.EqualFold(attr.Mutability, "readonly")
}

func validate(sc *Schema) error {
	ve := &ValidationErrors{}

	if len(sc.Id) == 0 {
		ve.add("schema id is required")
	}
	if len(sc.Attributes) == 0 {
		ve.add("a schema must declare at least one attribute")
		return ve
	}

	sc.AttrMap = make(map[string]*AttrType)
	for _, attr := range sc.Attributes {
		validateAttrType(attr, sc, ve)
		sc.AttrMap[strings.ToLower(attr.Name)] = attr
	}

	if ve.Count == 0 {
		return nil
	}
	return ve
}

func validateAttrType(attr *AttrType, sc *Schema, ve *ValidationErrors) {
	if !validNameRegex.MatchString(attr.Name) {
		ve.add("invalid attribute name %q", attr.Name)
	}
	if !contains(validTypes, strings.ToLower(attr.Type)) {
		ve.add("invalid type %q for attribute %s", attr.Type, attr.Name)
	}
	if !contains(validMutability, strings.ToLower(attr.Mutability)) {
		ve.add("invalid mutability %q for attribute %s", attr.Mutability, attr.Name)
	}
	if !contains(validReturned, strings.ToLower(attr.Returned)) {
		ve.add("invalid returned %q for attribute %s", attr.Returned, attr.Name)
	}
	if !contains(validUniqueness, strings.ToLower(attr.Uniqueness)) {
		ve.add("invalid uniqueness %q for attribute %s", attr.Uniqueness, attr.Name)
	}
	if attr.IsReference() && len(attr.ReferenceTypes) == 0 {
		ve.add("attribute %s is of type reference but declares no referenceTypes", attr.Name)
	}
	if attr.IsComplex() && len(attr.SubAttributes) == 0 {
		ve.add("attribute %s is complex but declares no subAttributes", attr.Name)
	}

	attr.SchemaId = sc.Id

	if attr.IsComplex() {
		attr.SubAttrMap = make(map[string]*AttrType)
		for _, sa := range attr.SubAttributes {
			validateAttrType(sa, sc, ve)
			sa.Parent = attr
			attr.SubAttrMap[strings.ToLower(sa.Name)] = sa
		}

		if attr.MultiValued {
			addDefaultSubAttrs(attr)
		}
	}
}

// addDefaultSubAttrs injects the common plural sub-attributes defined by
// RFC 7643 §2.4 when the schema author did not declare them explicitly.
func addDefaultSubAttrs(attr *AttrType) {
	defaults := []*AttrType{
		func() *AttrType { a := newAttrType(); a.Name = "type"; return a }(),
		func() *AttrType { a := newAttrType(); a.Name = "primary"; a.Type = "boolean"; return a }(),
		func() *AttrType { a := newAttrType(); a.Name = "display"; a.Mutability = "immutable"; return a }(),
		func() *AttrType { a := newAttrType(); a.Name = "value"; return a }(),
		func() *AttrType { a := newAttrType(); a.Name = "$ref"; a.Type = "reference"; a.ReferenceTypes = []string{"external"}; return a }(),
	}

	for _, a := range defaults {
		key := strings.ToLower(a.Name)
		if _, exists := attr.SubAttrMap[key]; !exists {
			a.SchemaId = attr.SchemaId
			a.Parent = attr
			attr.SubAttrMap[key] = a
		}
	}
}

func contains(list []string, val string) bool {
	for _, v := range list {
		if v == val {
			return true
		}
	}
	return false
}

// GetAttr resolves a possibly dotted attribute path ("name.givenName")
// against this schema, returning false when no such attribute exists
// rather than panicking — callers at the parse/filter boundary decide
// whether a missing attribute is a client error.
func (sc *Schema) GetAttr(path string) (*AttrType, bool) {
	path = strings.ToLower(path)

	if dot := strings.IndexByte(path, '.'); dot >= 0 {
		parent, ok := sc.AttrMap[path[:dot]]
		if !ok || !parent.IsComplex() {
			return nil, false
		}
		sub, ok := parent.SubAttrMap[path[dot+1:]]
		return sub, ok
	}

	at, ok := sc.AttrMap[path]
	return at, ok
}
