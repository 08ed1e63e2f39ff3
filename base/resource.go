// Copyright 2017 Keydap. All rights reserved.
// Licensed under the Apache License, Version 2.0, see LICENSE.

package base

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	logger "github.com/juju/loggo"

	"github.com/scimdrift/scimd/schema"
)

var log = logger.GetLogger("scimd.base")

const URI_DELIM = ":"

const ATTR_DELIM = "."

// Attribute is the common contract for the two concrete attribute value
// kinds a SCIMObject can hold: a scalar SimpleAttribute or a nested
// ComplexAttribute. A singular attribute exposes one value; a plural
// attribute exposes zero or more complex values, each a map of the
// plural's canonical sub-attributes (value/type/primary/display/$ref).
type Attribute interface {
	IsSimple() bool
	GetSimpleAt() *SimpleAttribute
	GetComplexAt() *ComplexAttribute
	GetType() *schema.AttrType
}

// SimpleAttribute holds one or more primitive values (string, boolean,
// integer, datetime as epoch millis, binary as its base64 string).
// Name is always lowercased; AttrType.Name carries the
// original-case name used on the wire.
type SimpleAttribute struct {
	atType *schema.AttrType
	Name   string
	Values []interface{}
}

// ComplexAttribute holds its sub-attributes keyed by a random string
// rather than a slice: Group.members on a directory-backed resource can
// carry a very large number of entries, and a map resizes cheaper than a
// growing slice under repeated single-element appends.
type ComplexAttribute struct {
	atType *schema.AttrType
	Name   string
	SubAts map[string]map[string]*SimpleAttribute
}

// AtGroup is the set of attributes belonging to one schema (the resource's
// core schema, or one extension schema).
type AtGroup struct {
	SimpleAts  map[string]*SimpleAttribute
	ComplexAts map[string]*ComplexAttribute
}

// Resource is a SCIMObject: an ordered mapping from schema URI to an
// ordered mapping from attribute name to SCIMAttribute, materialized as
// a core AtGroup plus zero or more extension AtGroups keyed by schema URN.
type Resource struct {
	resType  *schema.ResourceType
	TypeName string
	Core     *AtGroup
	Ext      map[string]*AtGroup
}

type postParsingHints struct {
	updateSchemas bool
}

func (sa *SimpleAttribute) IsSimple() bool { return true }

func (sa *SimpleAttribute) GetType() *schema.AttrType { return sa.atType }

// GetStringVal returns the first value without type conversion; it only
// works when the attribute's values are strings.
func (sa *SimpleAttribute) GetStringVal() string {
	return sa.Values[0].(string)
}

func (sa *SimpleAttribute) GetSimpleAt() *SimpleAttribute { return sa }

func (sa *SimpleAttribute) GetComplexAt() *ComplexAttribute {
	panic("Not a complex attribute")
}

func (ca *ComplexAttribute) IsSimple() bool { return false }

func (ca *ComplexAttribute) GetType() *schema.AttrType { return ca.atType }

func (ca *ComplexAttribute) GetSimpleAt() *SimpleAttribute {
	panic("Not a simple attribute")
}

func (ca *ComplexAttribute) GetComplexAt() *ComplexAttribute { return ca }

// NewSimpleAt builds a singular or plural SimpleAttribute, rejecting a
// multiplicity mismatch between the descriptor and the given values.
func NewSimpleAt(atType *schema.AttrType, vals ...interface{}) *SimpleAttribute {
	if len(vals) == 0 {
		panic(fmt.Errorf("NewSimpleAt: no values given for attribute %s", atType.Name))
	}
	if !atType.MultiValued && len(vals) > 1 {
		panic(fmt.Errorf("NewSimpleAt: singular attribute %s given %d values", atType.Name, len(vals)))
	}

	sa := &SimpleAttribute{}
	sa.atType = atType
	sa.Name = strings.ToLower(atType.Name)
	sa.Values = append(sa.Values, vals...)

	return sa
}

// NewComplexAt builds an empty ComplexAttribute ready to receive
// sub-attributes via AddSubAts.
func NewComplexAt(atType *schema.AttrType) *ComplexAttribute {
	ca := &ComplexAttribute{}
	ca.Name = strings.ToLower(atType.Name)
	ca.atType = atType
	ca.SubAts = make(map[string]map[string]*SimpleAttribute)

	return ca
}

// AddSubAts parses and appends one complex value (a map of sub-attribute
// name to raw value), enforcing that every sub-attribute belongs to the
// parent descriptor's declared sub-attribute set and that at most one
// plural element is ever marked primary=true.
func (ca *ComplexAttribute) AddSubAts(subAtMap map[string]interface{}) {
	subAt, primary := ParseSubAtList(subAtMap, ca.atType)
	if ca.SubAts == nil {
		ca.SubAts = make(map[string]map[string]*SimpleAttribute)
	}

	if primary && ca.HasPrimarySet() {
		panic(NewBadRequestError(fmt.Sprintf("more than one value of %s is marked as primary", ca.atType.Name)))
	}

	if !ca.atType.MultiValued && len(ca.SubAts) > 0 {
		ca.SubAts = make(map[string]map[string]*SimpleAttribute, 1)
	}

	ca.SubAts[RandStr()] = subAt
}

// GetValue returns the value of one sub-attribute from the first (or, for
// a plural attribute, an arbitrary) complex value.
func (ca *ComplexAttribute) GetValue(subAtName string) interface{} {
	if len(ca.SubAts) == 0 {
		return nil
	}

	subAtName = strings.ToLower(subAtName)
	for _, atMap := range ca.SubAts {
		if sa := atMap[subAtName]; sa != nil {
			return sa.Values[0]
		}
		break
	}

	return nil
}

func (ca *ComplexAttribute) GetFirstSubAtAndKey() (subAtMap map[string]*SimpleAttribute, key string) {
	for k, atMap := range ca.SubAts {
		return atMap, k
	}
	return nil, ""
}

func (ca *ComplexAttribute) GetFirstSubAt() map[string]*SimpleAttribute {
	subAtMap, _ := ca.GetFirstSubAtAndKey()
	return subAtMap
}

// HasPrimarySet reports whether any plural element of this attribute is
// currently marked primary=true (invariant 3).
func (ca *ComplexAttribute) HasPrimarySet() bool {
	if !ca.atType.MultiValued {
		return false
	}

	for _, sMap := range ca.SubAts {
		if sa, ok := sMap["primary"]; ok {
			if p, ok := sa.Values[0].(bool); ok && p {
				return true
			}
		}
	}

	return false
}

func (ca *ComplexAttribute) UnsetPrimaryFlag() {
	if !ca.atType.MultiValued {
		return
	}

	for _, sMap := range ca.SubAts {
		if sa, ok := sMap["primary"]; ok {
			if p, ok := sa.Values[0].(bool); ok && p {
				sa.Values[0] = false
			}
		}
	}
}

func (atg *AtGroup) getAttribute(name string) Attribute {
	if atg.SimpleAts != nil {
		if v, ok := atg.SimpleAts[name]; ok {
			return v
		}
	}

	if atg.ComplexAts != nil {
		if v, ok := atg.ComplexAts[name]; ok {
			return v
		}
	}

	return nil
}

// DeleteAttr removes and returns the attribute at attrPath (optionally
// "schemaURI:name" qualified), or nil if absent.
func (rs *Resource) DeleteAttr(attrPath string) Attribute {
	pos := strings.LastIndex(attrPath, URI_DELIM)
	if pos > 0 {
		var atg *AtGroup
		uri := attrPath[:pos]
		attrPath = strings.ToLower(attrPath[pos+1:])

		if rs.Ext != nil {
			atg = rs.Ext[uri]
		}

		if atg == nil {
			if uri == rs.resType.Schema {
				atg = rs.Core
			} else {
				log.Warningf("unknown schema URI prefix in attribute %s", attrPath)
				return nil
			}
		}

		return rs.deleteAttribute(attrPath, atg)
	}

	attrPath = strings.ToLower(attrPath)
	return rs.deleteAttribute(attrPath, rs.Core)
}

func (rs *Resource) deleteAttribute(attrPath string, atg *AtGroup) Attribute {
	pos := strings.LastIndex(attrPath, ATTR_DELIM)
	if pos > 0 {
		parent := attrPath[:pos]
		at := atg.getAttribute(parent)
		if at == nil {
			return nil
		}

		ct := at.GetComplexAt()
		childName := attrPath[pos+1:]
		var deleted Attribute

		for i, atMap := range ct.SubAts {
			if a, ok := atMap[childName]; ok {
				deleted = a
			}
			delete(atMap, childName)
			if len(atMap) == 0 {
				delete(ct.SubAts, i)
			}
		}

		if len(ct.SubAts) == 0 {
			if ct.atType.SchemaId == rs.resType.Schema {
				delete(rs.Core.ComplexAts, ct.Name)
			} else {
				delete(rs.Ext[ct.atType.SchemaId].ComplexAts, ct.Name)
			}
		}

		return deleted
	}

	if at, ok := atg.SimpleAts[attrPath]; ok {
		delete(atg.SimpleAts, attrPath)
		return at
	}
	if at, ok := atg.ComplexAts[attrPath]; ok {
		delete(atg.ComplexAts, attrPath)
		return at
	}

	return nil
}

func (rs *Resource) GetId() string {
	sa := rs.Core.SimpleAts["id"]
	if sa == nil {
		return ""
	}
	return sa.Values[0].(string)
}

func (rs *Resource) SetId(id string) {
	sa := rs.Core.SimpleAts["id"]
	if sa != nil {
		log.Warningf("id is already set on resource")
	} else {
		at, _ := rs.resType.GetAtType("id")
		sa = &SimpleAttribute{Name: "id", atType: at}
		rs.Core.SimpleAts[sa.Name] = sa
	}

	sa.Values = []interface{}{id}
}

func (rs *Resource) GetExternalId() *string {
	sa := rs.Core.SimpleAts["externalid"]
	if sa == nil {
		return nil
	}
	str := sa.Values[0].(string)
	return &str
}

func (rs *Resource) GetMeta() *ComplexAttribute {
	return rs.Core.ComplexAts["meta"]
}

func (rs *Resource) GetVersion() string {
	meta := rs.GetMeta().GetFirstSubAt()
	return meta["version"].Values[0].(string)
}

func (rs *Resource) HasMember(userOrSubGid string) bool {
	ca := rs.Core.ComplexAts["members"]
	if ca == nil {
		return false
	}

	for _, subAtMap := range ca.SubAts {
		if id, ok := subAtMap["value"]; ok && id.Values[0].(string) == userOrSubGid {
			return true
		}
	}

	return false
}

func (rs *Resource) IsMemberOf(gid string) bool {
	ca := rs.Core.ComplexAts["groups"]
	if ca == nil {
		return false
	}

	for _, subAtMap := range ca.SubAts {
		if id, ok := subAtMap["value"]; ok && id.Values[0].(string) == gid {
			return true
		}
	}

	return false
}

func (rs *Resource) RemoveMember(uid string) {
	ca := rs.Core.ComplexAts["members"]
	if ca == nil {
		return
	}

	for key, subAtMap := range ca.SubAts {
		if id, ok := subAtMap["value"]; ok && id.Values[0].(string) == uid {
			delete(ca.SubAts, key)
		}
	}
}

// AddMeta attaches the server-managed meta complex attribute (resourceType,
// created, lastModified, location, version) to a freshly created resource.
func (rs *Resource) AddMeta() *ComplexAttribute {
	ca := &ComplexAttribute{}
	ca.Name = "meta"
	sc := rs.resType.GetMainSchema()
	parentAt := sc.AttrMap["meta"]
	ca.atType = parentAt
	ca.SubAts = make(map[string]map[string]*SimpleAttribute, 1)
	rs.Core.ComplexAts[ca.Name] = ca

	atMap := make(map[string]*SimpleAttribute)
	ca.SubAts[RandStr()] = atMap

	now := time.Now().UTC()

	resTypeAt := &SimpleAttribute{Name: "resourcetype", atType: parentAt.SubAttrMap["resourcetype"]}
	resTypeAt.Values = []interface{}{rs.resType.Name}
	atMap[resTypeAt.Name] = resTypeAt

	createdAt := &SimpleAttribute{Name: "created", atType: parentAt.SubAttrMap["created"]}
	createdAt.Values = []interface{}{now.UnixMilli()}
	atMap[createdAt.Name] = createdAt

	lastModAt := &SimpleAttribute{Name: "lastmodified", atType: parentAt.SubAttrMap["lastmodified"]}
	lastModAt.Values = []interface{}{now.UnixMilli()}
	atMap[lastModAt.Name] = lastModAt

	locationAt := &SimpleAttribute{Name: "location", atType: parentAt.SubAttrMap["location"]}
	locationAt.Values = []interface{}{rs.resType.Endpoint + "/" + rs.GetId()}
	atMap[locationAt.Name] = locationAt

	versionAt := &SimpleAttribute{Name: "version", atType: parentAt.SubAttrMap["version"]}
	versionAt.Values = []interface{}{now.Format(time.RFC3339)}
	atMap[versionAt.Name] = versionAt

	return ca
}

// RemoveReadOnlyAt drops every readOnly attribute from an inbound resource
// body, per invariant 5 ("readOnly attributes ... are silently ignored by
// PUT/POST semantics").
func (rs *Resource) RemoveReadOnlyAt() {
	_removeReadOnly(rs.Core)
	for _, v := range rs.Ext {
		_removeReadOnly(v)
	}
}

func _removeReadOnly(atg *AtGroup) {
	if atg == nil {
		return
	}

	for k, v := range atg.SimpleAts {
		if v.GetType().IsReadOnly() {
			if k == "schemas" {
				continue
			}
			delete(atg.SimpleAts, k)
		}
	}

	for k, v := range atg.ComplexAts {
		if v.GetType().IsReadOnly() {
			delete(atg.ComplexAts, k)
			continue
		}
		for _, subAtMap := range v.SubAts {
			for sk, sv := range subAtMap {
				if sv.GetType().IsReadOnly() {
					delete(subAtMap, sk)
				}
			}
		}
	}
}

// CheckMissingRequiredAts validates invariant 5's POST-time half: every
// attribute declared required in the resource's schemas must be present.
func (rs *Resource) CheckMissingRequiredAts() error {
	if err := _checkMissingReqAts(rs.resType.GetMainSchema(), rs); err != nil {
		return err
	}

	for scid := range rs.Ext {
		if err := _checkMissingReqAts(rs.resType.GetSchema(scid), rs); err != nil {
			return err
		}
	}

	return nil
}

func _checkMissingReqAts(sc *schema.Schema, rs *Resource) error {
	if sc == nil {
		return nil
	}
	for _, at := range sc.Attributes {
		if !at.Required {
			continue
		}
		if rs.GetAttr(at.Name) == nil {
			detail := fmt.Sprintf("required attribute %s of schema %s is missing from the resource", at.Name, sc.Id)
			se := NewBadRequestError(detail)
			se.ScimType = ST_INVALIDVALUE
			return se
		}
	}
	return nil
}

func (ca *ComplexAttribute) HasValue(val interface{}) bool {
	for _, subAtMap := range ca.SubAts {
		if existingValAt, ok := subAtMap["value"]; ok {
			if existingValAt.Values[0] == val {
				return true
			}
		}
	}
	return false
}

func (sa *SimpleAttribute) Equals(other *SimpleAttribute) bool {
	if other == nil {
		return false
	}
	if sa.atType != other.atType {
		return false
	}
	if len(sa.Values) != len(other.Values) {
		return false
	}

	for _, saVal := range sa.Values {
		matches := false
		for _, otherVal := range other.Values {
			if Compare(sa.atType, saVal, otherVal) {
				matches = true
				break
			}
		}
		if !matches {
			return false
		}
	}

	return true
}

// Compare performs a type-appropriate equality check between two raw
// attribute values of the same AttrType.
func Compare(atType *schema.AttrType, saVal interface{}, otherVal interface{}) bool {
	switch strings.ToLower(atType.Type) {
	case "boolean":
		return saVal.(bool) == otherVal.(bool)
	case "integer", "datetime":
		return saVal.(int64) == otherVal.(int64)
	case "decimal":
		return saVal.(float64) == otherVal.(float64)
	case "string", "binary", "reference":
		return saVal.(string) == otherVal.(string)
	}

	panic(fmt.Errorf("unknown attribute type %q for comparison", atType.Type))
}

func (rs *Resource) UpdateLastModTime(csn Csn) {
	meta := rs.Core.ComplexAts["meta"].GetFirstSubAt()
	meta["lastmodified"].Values[0] = csn.TimeMillis()
	meta["version"].Values[0] = csn.String()
}

func (rs *Resource) UpdateSchemas() {
	schemaIds := []interface{}{rs.resType.Schema}
	for scId := range rs.Ext {
		schemaIds = append(schemaIds, scId)
	}

	schemas := rs.Core.SimpleAts["schemas"]
	schemas.Values = schemaIds
}

// GetAttr resolves a (possibly "schemaURI:" qualified) attribute path
// against this resource's core schema, falling back to every extension
// schema when unqualified.
func (rs *Resource) GetAttr(attrPath string) Attribute {
	pos := strings.LastIndex(attrPath, URI_DELIM)
	if pos > 0 {
		var atg *AtGroup
		uri := attrPath[:pos]
		attrPath = strings.ToLower(attrPath[pos+1:])

		if rs.Ext != nil {
			atg = rs.Ext[uri]
		}

		if atg == nil {
			if uri == rs.resType.Schema {
				atg = rs.Core
			} else {
				return nil
			}
		}

		return rs.searchAttr(attrPath, atg)
	}

	attrPath = strings.ToLower(attrPath)
	at := rs.searchAttr(attrPath, rs.Core)
	if at == nil {
		for _, exAtg := range rs.Ext {
			at = rs.searchAttr(attrPath, exAtg)
			if at != nil {
				break
			}
		}
	}

	return at
}

func (rs *Resource) searchAttr(attrPath string, atg *AtGroup) Attribute {
	if atg == nil {
		return nil
	}
	pos := strings.LastIndex(attrPath, ATTR_DELIM)
	if pos > 0 {
		parent := attrPath[:pos]
		at := atg.getAttribute(parent)
		if at != nil && !at.IsSimple() {
			ct := at.GetComplexAt()
			child := attrPath[pos+1:]
			atMap := ct.GetFirstSubAt()
			if v, ok := atMap[child]; ok {
				return v
			}
		}
		return nil
	}

	return atg.getAttribute(attrPath)
}

func (rs *Resource) GetType() *schema.ResourceType { return rs.resType }

func NewAtGroup() *AtGroup {
	return &AtGroup{SimpleAts: make(map[string]*SimpleAttribute), ComplexAts: make(map[string]*ComplexAttribute)}
}

func NewResource(rt *schema.ResourceType) *Resource {
	rs := &Resource{}
	rs.resType = rt
	rs.TypeName = rt.Name
	rs.Core = NewAtGroup()
	rs.Ext = make(map[string]*AtGroup)

	return rs
}

// AddSA constructs and attaches a singular or plural SimpleAttribute by
// name, looking up its descriptor on this resource's resource type.
func (rs *Resource) AddSA(name string, val ...interface{}) error {
	at, ok := rs.resType.GetAtType(name)
	if !ok {
		return fmt.Errorf("no attribute type found with the name %s on resource type %s", name, rs.resType.Name)
	}
	if len(val) == 0 {
		return fmt.Errorf("invalid values given for the attribute %s", name)
	}

	sa := &SimpleAttribute{atType: at, Name: strings.ToLower(at.Name)}
	if !at.MultiValued {
		sa.Values = []interface{}{val[0]}
	} else {
		sa.Values = val
	}

	rs.AddSimpleAt(sa)
	return nil
}

// AddCA constructs and attaches a singular or plural ComplexAttribute by
// name from one or more sub-attribute maps.
func (rs *Resource) AddCA(name string, val ...map[string]interface{}) (err error) {
	at, ok := rs.resType.GetAtType(name)
	if !ok {
		return fmt.Errorf("no attribute type found with the name %s on resource type %s", name, rs.resType.Name)
	}
	if len(val) == 0 {
		return fmt.Errorf("invalid values given for the attribute %s", name)
	}

	defer func() {
		if e := recover(); e != nil {
			if asErr, ok := e.(error); ok {
				err = asErr
			} else {
				err = fmt.Errorf("%v", e)
			}
		}
	}()

	var ca *ComplexAttribute
	if at.MultiValued {
		ca = ParseComplexAttr(at, toIfaceSlice(val))
	} else {
		ca = ParseComplexAttr(at, val[0])
	}

	if ca == nil {
		return fmt.Errorf("failed to add the complex attribute %s, check the input data", name)
	}

	rs.AddComplexAt(ca)
	return nil
}

func toIfaceSlice(val []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(val))
	for i, v := range val {
		out[i] = v
	}
	return out
}

func (rs *Resource) AddSimpleAt(sa *SimpleAttribute) {
	scId := sa.atType.SchemaId
	if scId == rs.resType.Schema {
		rs.Core.SimpleAts[sa.Name] = sa
		return
	}

	atg := rs.Ext[scId]
	if atg == nil {
		atg = NewAtGroup()
		rs.Ext[scId] = atg
	}
	atg.SimpleAts[sa.Name] = sa
}

func (rs *Resource) AddComplexAt(ca *ComplexAttribute) {
	scId := ca.atType.SchemaId
	if scId == rs.resType.Schema {
		rs.Core.ComplexAts[ca.Name] = ca
		return
	}

	atg := rs.Ext[scId]
	if atg == nil {
		atg = NewAtGroup()
		rs.Ext[scId] = atg
	}
	atg.ComplexAts[ca.Name] = ca
}

// SetSchema rebinds every attribute of this resource to descriptors drawn
// from rt, used after a gob round-trip or cross-process transfer where
// *schema.AttrType pointer identity cannot survive encoding.
func (rs *Resource) SetSchema(rt *schema.ResourceType) {
	if rt == nil {
		panic("ResourceType cannot be nil")
	}
	if rt.Name != rs.TypeName {
		panic("resource type name mismatch")
	}

	rs.resType = rt
	if rs.Core != nil {
		rs.Core.setSchema(rt.GetMainSchema())
	}

	for k, v := range rs.Ext {
		v.setSchema(rt.GetSchema(k))
	}
}

func (atg *AtGroup) setSchema(sc *schema.Schema) {
	if sc == nil {
		return
	}

	for k, v := range atg.SimpleAts {
		v.atType = sc.AttrMap[k]
	}

	for k, v := range atg.ComplexAts {
		parentType := sc.AttrMap[k]
		v.atType = parentType
		for _, saArr := range v.SubAts {
			for _, sa := range saArr {
				if parentType != nil {
					sa.atType = parentType.SubAttrMap[sa.Name]
				}
			}
		}
	}
}

// ToMap renders one AtGroup into a plain map keyed by original-case
// attribute name, ready for JSON marshaling or XML element emission.
func (atg *AtGroup) ToMap() map[string]interface{} {
	obj := make(map[string]interface{})

	for _, v := range atg.SimpleAts {
		if i := v.valToInterface(); i != nil {
			obj[v.atType.Name] = i
		}
	}

	for _, v := range atg.ComplexAts {
		if i := v.valToInterface(); i != nil {
			obj[v.atType.Name] = i
		}
	}

	return obj
}

// ParseResource unmarshals a SCIM JSON resource body against the resource
// type selected by its "schemas" array.
func ParseResource(resTypes map[string]*schema.ResourceType, sm map[string]*schema.Schema, body io.Reader) (*Resource, error) {
	if sm == nil {
		return nil, NewBadRequestError("schemas cannot be nil")
	}
	if resTypes == nil {
		return nil, NewBadRequestError("resourceTypes cannot be nil")
	}
	if body == nil {
		return nil, NewBadRequestError("invalid JSON data")
	}

	var i interface{}
	dec := json.NewDecoder(body)
	if err := dec.Decode(&i); err != nil {
		return nil, NewBadRequestError(err.Error())
	}

	if reflect.TypeOf(i) == nil || reflect.TypeOf(i).Kind() != reflect.Map {
		return nil, NewBadRequestError("invalid JSON data")
	}

	obj := i.(map[string]interface{})

	schemaIds := obj["schemas"]
	if schemaIds == nil {
		return nil, NewBadRequestError("invalid resource, 'schemas' attribute is missing")
	}

	rv := reflect.ValueOf(schemaIds)
	kind := rv.Kind()
	if kind != reflect.Slice && kind != reflect.Array {
		return nil, NewBadRequestError("value of the 'schemas' attribute must be an array")
	}

	schemaIdMap := make(map[string]int)
	for i := 0; i < rv.Len(); i++ {
		v := rv.Index(i)
		k := v.Kind()
		if k != reflect.String && k != reflect.Interface {
			return nil, NewBadRequestError("value given for the 'schemas' attribute is invalid")
		}

		var strVal string
		if k == reflect.Interface {
			strVal = fmt.Sprint(v.Interface())
		} else {
			strVal = v.String()
		}
		schemaIdMap[strVal] = 0
	}

	var rt *schema.ResourceType
	for _, rtype := range resTypes {
		if _, present := schemaIdMap[rtype.Schema]; present {
			rt = rtype
			break
		}
	}

	if rt == nil {
		return nil, NewBadRequestError(fmt.Sprintf("no resource type found with the schemas %v", schemaIdMap))
	}

	delete(schemaIdMap, rt.Schema)

	if len(rt.SchemaExtensions) != 0 {
		for _, v := range rt.SchemaExtensions {
			if v.Required {
				if _, present := schemaIdMap[v.Schema]; !present {
					return nil, NewBadRequestError(fmt.Sprintf("the extension schema %s is missing in the resource data, mandatory for resource type %s", v.Schema, rt.Id))
				}
			}
			delete(schemaIdMap, v.Schema)
		}

		if len(schemaIdMap) != 0 {
			return nil, NewBadRequestError(fmt.Sprintf("unknown schema extensions present in the given resource data %v", schemaIdMap))
		}
	} else if len(schemaIdMap) > 0 {
		return nil, NewBadRequestError(fmt.Sprintf("given resource data specifies schema extension(s) but resource type %s declares none", rt.Id))
	}

	return ToResource(rt, sm, obj)
}

// ToResource builds a Resource directly from a decoded JSON object,
// skipping the 'schemas' resolution ParseResource performs.
func ToResource(rt *schema.ResourceType, sm map[string]*schema.Schema, obj map[string]interface{}) (rs *Resource, err error) {
	rs = &Resource{}
	rs.resType = rt
	rs.TypeName = rt.Name
	rs.Core = NewAtGroup()
	rs.Ext = make(map[string]*AtGroup)

	defer func() {
		if e := recover(); e != nil {
			rs = nil
			if asErr, ok := e.(error); ok {
				err = asErr
			} else {
				err = fmt.Errorf("%v", e)
			}
		}
	}()

	sc := rt.GetMainSchema()
	pph := &postParsingHints{}

	parseJsonObject(obj, rt, sc, rs, pph)

	if pph.updateSchemas {
		rs.UpdateSchemas()
	}

	return rs, nil
}

func parseJsonObject(obj map[string]interface{}, rt *schema.ResourceType, sc *schema.Schema, rs *Resource, pph *postParsingHints) {
	if sc == nil {
		panic(NewBadRequestError(fmt.Sprintf("schema of resource type %s cannot be nil", rs.TypeName)))
	}

	for k, v := range obj {
		if strings.ContainsRune(k, ':') {
			extSc := rt.GetSchema(k)
			if extSc == nil {
				panic(NewBadRequestError(fmt.Sprintf("unknown schema, %s is not one of the extension schemas of resource type %s", k, rs.TypeName)))
			}

			var vObj map[string]interface{}
			switch t := v.(type) {
			case map[string]interface{}:
				if len(t) == 0 {
					pph.updateSchemas = true
					continue
				}
				vObj = t
			case nil:
				pph.updateSchemas = true
				continue
			default:
				panic(NewBadRequestError(fmt.Sprintf("invalid value of key %s", k)))
			}

			parseJsonObject(vObj, rt, extSc, rs, pph)
			continue
		}

		atName := strings.ToLower(k)
		atType := sc.AttrMap[atName]
		if atType == nil {
			panic(NewBadRequestError(fmt.Sprintf("attribute %s doesn't exist in schema %s", atName, sc.Id)))
		}

		if atType.IsSimple() || atType.IsReference() {
			if sa := ParseSimpleAttr(atType, v); sa != nil {
				rs.AddSimpleAt(sa)
			}
		} else if atType.IsComplex() {
			if ca := ParseComplexAttr(atType, v); ca != nil {
				rs.AddComplexAt(ca)
			}
		}
	}
}

// ParseSimpleAttr converts a decoded JSON value into a SimpleAttribute,
// validating its shape (scalar vs array) against atType.MultiValued.
func ParseSimpleAttr(attrType *schema.AttrType, iVal interface{}) *SimpleAttribute {
	rv := reflect.ValueOf(iVal)
	kind := rv.Kind()

	if kind == reflect.Invalid {
		return nil
	}

	sa := &SimpleAttribute{}
	sa.Name = strings.ToLower(attrType.Name)
	sa.atType = attrType

	if attrType.MultiValued {
		if kind != reflect.Slice && kind != reflect.Array {
			panic(NewBadRequestError(fmt.Sprintf("value of the attribute %s must be an array", attrType.Name)))
		}

		arrLen := rv.Len()
		if arrLen == 0 {
			return nil
		}

		arr := make([]interface{}, arrLen)
		for i := 0; i < arrLen; i++ {
			v := rv.Index(i)
			if v.Kind() == reflect.Invalid {
				panic(NewBadRequestError(fmt.Sprintf("null value present in multivalued attribute %s", attrType.Name)))
			}
			arr[i] = CheckValueTypeAndConvert(v, attrType)
		}

		sa.Values = arr
		return sa
	}

	sa.Values = []interface{}{CheckValueTypeAndConvert(rv, attrType)}
	return sa
}

// CheckValueTypeAndConvert validates a single decoded JSON scalar against
// attrType.Type and converts it into the attribute model's internal
// representation (datetimes become epoch millis).
func CheckValueTypeAndConvert(v reflect.Value, attrType *schema.AttrType) interface{} {
	invalid := func() *ScimError {
		se := NewBadRequestError(fmt.Sprintf("invalid value %#v in attribute %s", v, attrType.Name))
		se.ScimType = ST_INVALIDVALUE
		return se
	}

	kind := v.Kind()

	switch strings.ToLower(attrType.Type) {
	case "boolean":
		if kind != reflect.Bool {
			panic(invalid())
		}
		return v.Bool()

	case "integer":
		if kind != reflect.Float64 {
			panic(invalid())
		}
		str := fmt.Sprint(v.Float())
		if strings.ContainsRune(str, '.') {
			panic(invalid())
		}
		intVal, e := strconv.ParseInt(str, 10, 64)
		if e != nil {
			panic(invalid())
		}
		return intVal

	case "decimal":
		if kind != reflect.Float64 {
			panic(invalid())
		}
		return v.Float()

	case "datetime":
		if kind != reflect.String && kind != reflect.Interface {
			panic(invalid())
		}
		var date string
		if kind == reflect.Interface {
			date = fmt.Sprint(v.Interface())
		} else {
			date = v.String()
		}
		t, e := time.Parse(time.RFC3339, date)
		if e != nil {
			panic(invalid())
		}
		return t.UnixNano() / int64(time.Millisecond)

	case "string", "binary", "reference":
		if kind != reflect.String && kind != reflect.Interface {
			panic(invalid())
		}
		if kind == reflect.Interface {
			return fmt.Sprint(v.Interface())
		}
		return v.String()

	default:
		panic(invalid())
	}
}

// ParseComplexAttr converts a decoded JSON value (object, or array of
// objects for a plural attribute) into a ComplexAttribute.
func ParseComplexAttr(attrType *schema.AttrType, iVal interface{}) *ComplexAttribute {
	rv := reflect.ValueOf(iVal)
	kind := rv.Kind()

	if kind == reflect.Invalid {
		return nil
	}

	ca := &ComplexAttribute{}
	ca.Name = strings.ToLower(attrType.Name)
	ca.atType = attrType

	if attrType.MultiValued {
		if kind != reflect.Slice && kind != reflect.Array {
			panic(NewBadRequestError(fmt.Sprintf("value of the attribute %s must be an array", attrType.Name)))
		}

		arrLen := rv.Len()
		if arrLen == 0 {
			return nil
		}

		subAtArrMap := make(map[string]map[string]*SimpleAttribute)
		primaryAlreadySet := false
		for i := 0; i < arrLen; i++ {
			v := rv.Index(i)
			if v.Kind() == reflect.Invalid {
				panic(NewBadRequestError(fmt.Sprintf("null value present in multivalued complex attribute %s", attrType.Name)))
			}

			simpleAtMap, prm := ParseSubAtList(v.Interface(), attrType)
			if prm {
				if primaryAlreadySet {
					panic(NewBadRequestError(fmt.Sprintf("more than one value of %s is marked as primary", attrType.Name)))
				}
				primaryAlreadySet = true
			}
			subAtArrMap[RandStr()] = simpleAtMap
		}

		ca.SubAts = subAtArrMap
		return ca
	}

	simpleAtMap, _ := ParseSubAtList(iVal, attrType)
	if len(simpleAtMap) == 0 {
		return nil
	}

	ca.SubAts = map[string]map[string]*SimpleAttribute{RandStr(): simpleAtMap}
	return ca
}

// ParseSubAtList parses one complex value's sub-attribute object,
// rejecting any key that is not in attrType's declared sub-attribute set
// (invariant 2) and reporting whether primary=true was present.
func ParseSubAtList(v interface{}, attrType *schema.AttrType) (subAtMap map[string]*SimpleAttribute, primary bool) {
	vObj, ok := v.(map[string]interface{})
	if !ok {
		panic(NewBadRequestError(fmt.Sprintf("invalid sub-attribute value %#v, expected a JSON object", v)))
	}

	arr := make(map[string]*SimpleAttribute)
	for k, v := range vObj {
		subAtName := strings.ToLower(k)
		subAtType := attrType.SubAttrMap[subAtName]
		if subAtType == nil {
			panic(NewBadRequestError(fmt.Sprintf("sub-attribute %s.%s doesn't exist in schema %s", attrType.Name, subAtName, attrType.SchemaId)))
		}

		subAt := ParseSimpleAttr(subAtType, v)
		if subAt != nil {
			if subAt.Name == "primary" {
				if p, ok := subAt.Values[0].(bool); ok && p {
					primary = true
				}
			}
			arr[subAt.Name] = subAt
		}
	}

	return arr, primary
}

func (sa *SimpleAttribute) valToInterface() interface{} {
	if sa.Values == nil {
		return nil
	}

	if sa.atType.MultiValued {
		arr := make([]interface{}, len(sa.Values))
		for i, v := range sa.Values {
			arr[i] = getConvertedVal(v, sa)
		}
		return arr
	}

	return getConvertedVal(sa.Values[0], sa)
}

func (ca *ComplexAttribute) valToInterface() interface{} {
	if ca.SubAts == nil {
		return nil
	}

	if ca.atType.MultiValued {
		arr := make([]map[string]interface{}, 0, len(ca.SubAts))
		for _, v := range ca.SubAts {
			arr = append(arr, simpleATMapToMap(v))
		}
		return arr
	}

	return simpleATMapToMap(ca.GetFirstSubAt())
}

func simpleATMapToMap(sas map[string]*SimpleAttribute) map[string]interface{} {
	obj := make(map[string]interface{})
	for _, v := range sas {
		obj[v.atType.Name] = v.valToInterface()
	}
	return obj
}

func getConvertedVal(v interface{}, sa *SimpleAttribute) interface{} {
	if strings.ToLower(sa.atType.Type) == "datetime" {
		millis, _ := v.(int64)
		t := time.Unix(0, millis*int64(time.Millisecond)).UTC()
		return t.Format(time.RFC3339)
	}
	return v
}

func (rs *Resource) ToJSON() string {
	if rs.Core == nil {
		return `{"error": "invalid resource, no attributes"}`
	}
	return string(rs.Serialize())
}

// ToGenericMap renders the resource into the same plain
// map[string]interface{} shape the JSON codec decodes a wire body into
// (extension schemas nested under their URI key): core-schema attributes
// at the top level, each extension schema nested under its own URI key.
// Both the JSON and XML codecs build on this shared representation so
// that only the wire framing, not the attribute-conversion logic, differs
// between them.
func (rs *Resource) ToGenericMap() map[string]interface{} {
	obj := rs.Core.ToMap()

	for k, v := range rs.Ext {
		obj[k] = v.ToMap()
	}

	return obj
}

// Serialize renders the resource to its SCIM 1.0 JSON representation:
// core-schema attributes at the top level, each extension schema nested
// under its own URI key.
func (rs *Resource) Serialize() []byte {
	obj := rs.ToGenericMap()

	data, err := json.Marshal(obj)
	if err != nil {
		log.Criticalf("failed to serialize resource: %s", err)
		return nil
	}

	return data
}

// FilterAndSerialize renders the resource honoring an attributes= or
// excludedAttributes= selection (§4.4): include=false deletes the named
// paths before serializing everything else; include=true serializes only
// the named paths.
func (rs *Resource) FilterAndSerialize(attrs map[string]*AttributeParam, include bool) []byte {
	if !include {
		for _, ap := range attrs {
			if ap.SubAts != nil {
				for _, name := range ap.SubAts {
					rs.DeleteAttr(ap.Name + "." + name)
				}
			} else {
				rs.DeleteAttr(ap.Name)
			}
		}

		return rs.Serialize()
	}

	coreObj := make(map[string]interface{})

	for _, ap := range attrs {
		at := rs.GetAttr(ap.Name)
		if at == nil {
			continue
		}

		obj := coreObj
		atType := at.GetType()
		if atType.SchemaId != rs.resType.Schema {
			tmp := coreObj[atType.SchemaId]
			if tmp == nil {
				obj = make(map[string]interface{})
				coreObj[atType.SchemaId] = obj
			} else {
				obj = tmp.(map[string]interface{})
			}
		}

		if at.IsSimple() {
			sa := at.GetSimpleAt()
			obj[atType.Name] = sa.valToInterface()
			continue
		}

		ca := at.GetComplexAt()
		if ap.SubAts != nil {
			if atType.MultiValued {
				arr := make([]map[string]interface{}, 0)
				for _, st := range ca.SubAts {
					subObj := make(map[string]interface{})
					for _, sn := range ap.SubAts {
						if v, ok := st[sn]; ok {
							subObj[v.atType.Name] = getConvertedVal(v.Values[0], v)
						}
					}
					arr = append(arr, subObj)
				}
				obj[atType.Name] = arr
			} else {
				subObj := make(map[string]interface{})
				for _, sn := range ap.SubAts {
					if v, ok := ca.GetFirstSubAt()[sn]; ok {
						subObj[v.atType.Name] = getConvertedVal(v.Values[0], v)
					}
				}
				obj[atType.Name] = subObj
			}
		} else {
			obj[atType.Name] = ca.valToInterface()
		}
	}

	data, err := json.Marshal(coreObj)
	if err != nil {
		log.Criticalf("failed to serialize filtered resource: %s", err)
		return nil
	}

	return data
}
