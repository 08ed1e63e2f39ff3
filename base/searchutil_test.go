// Copyright 2017 Keydap. All rights reserved.
// Licensed under the Apache License, Version 2.0, see LICENSE.

package base

import (
	"os"
	"testing"

	"github.com/scimdrift/scimd/schema"
)

var restypes []*schema.ResourceType
var rTypesMap map[string]*schema.ResourceType
var schemas map[string]*schema.Schema

// deviceSchema is a made-up, non-core schema used only by the attribute
// parsing and patch tests below, to exercise a resource type with
// decimal/integer/datetime/complex attributes the core User schema
// doesn't have.
var deviceSchema = []byte(`{
  "id": "urn:keydap:params:scim:schemas:core:2.0:Device",
  "name": "Device",
  "description": "a test-only resource type with non-core attribute types",
  "attributes": [
    {"name": "manufacturer", "type": "string", "required": true},
    {"name": "serialNumber", "type": "string", "required": true, "uniqueness": "server"},
    {"name": "price", "type": "decimal"},
    {"name": "rating", "type": "integer"},
    {"name": "installedDate", "type": "datetime"},
    {"name": "repairDates", "type": "datetime", "multiValued": true},
    {"name": "location", "type": "complex", "subAttributes": [
      {"name": "latitude", "type": "string"},
      {"name": "longitude", "type": "string"}
    ]},
    {"name": "photos", "type": "complex", "multiValued": true, "subAttributes": [
      {"name": "value", "type": "string"},
      {"name": "primary", "type": "boolean"}
    ]}
  ]
}`)

var deviceResourceType = []byte(`{
  "id": "Device",
  "name": "Device",
  "endpoint": "/Devices",
  "description": "a test-only resource type",
  "schema": "urn:keydap:params:scim:schemas:core:2.0:Device"
}`)

func TestMain(m *testing.M) {
	reg, err := schema.NewRegistry()
	if err != nil {
		log.Criticalf("could not build test schema registry: %s", err)
		os.Exit(1)
	}

	if _, err := reg.AddSchema(deviceSchema); err != nil {
		log.Criticalf("could not register test Device schema: %s", err)
		os.Exit(1)
	}
	if _, err := reg.AddResourceType(deviceResourceType); err != nil {
		log.Criticalf("could not register test Device resource type: %s", err)
		os.Exit(1)
	}

	restypes = reg.ResourceTypes()
	rTypesMap = make(map[string]*schema.ResourceType)
	for _, rt := range restypes {
		rTypesMap[rt.Name] = rt
	}

	schemas = make(map[string]*schema.Schema)
	for _, sc := range reg.Schemas() {
		schemas[sc.Id] = sc
	}

	// now run the tests
	os.Exit(m.Run())
}

func TestParseAttributes(t *testing.T) {
	attrMap, subAtPresent := SplitAttrCsv("userName, pAsswoRD", restypes)
	if !(attrMap["username"] == 1 && attrMap["password"] == 1) {
		t.Errorf("Incorrect attribute parsing")
	}

	if subAtPresent {
		t.Errorf("The subAtPresent flag must be false")
	}

	atParams := ConvertToParamAttributes(attrMap, subAtPresent)
	if len(atParams) != 2 {
		t.Errorf("Incorrect AttributeParam list")
	}

	// the '.' in URN shouldn't be considered for presence of a sub-attribute
	_, subAtPresent = SplitAttrCsv("urn:scim:schemas:corE:1.0:userName", restypes)
	if subAtPresent {
		t.Errorf("The '.' in URN is considered for detecting presence of sub-attribute")
	}

	// check sub-attribute when the parent attribute is present
	attrMap, subAtPresent = SplitAttrCsv("userName, name.formatted, Name.GIVEnname, namename.name", restypes)
	if !(attrMap["username"] == 1 && attrMap["name.givenname"] == 1 && attrMap["name.formatted"] == 1 && attrMap["namename.name"] == 1) {
		t.Errorf("Incorrect sub-attribute parsing")
	}

	if !subAtPresent {
		t.Errorf("The subAtPresent flag must be true")
	}

	atParams = ConvertToParamAttributes(attrMap, subAtPresent)
	if len(atParams) != 3 {
		t.Errorf("Incorrect AttributeParam list")
	}

	nameParam := findAtParam("name", atParams)

	count := 0
	for _, k := range nameParam.SubAts {
		if k == "formatted" || k == "givenname" {
			count++
		}
	}

	if count != 2 {
		t.Errorf("Incorrect children of the complex attribute %s", nameParam.Name)
	}

	// check sub-attribute grouping WITHOUT the parent attribute
	attrMap, subAtPresent = SplitAttrCsv("id, userName, name.formatted, Name.GIVEnname, namename.name", restypes)
	if !(attrMap["username"] == 1 && attrMap["name.givenname"] == 1 && attrMap["name.formatted"] == 1 && attrMap["namename.name"] == 1) {
		t.Errorf("Incorrect sub-attribute parsing")
	}

	if !subAtPresent {
		t.Errorf("The subAtPresent flag must be true")
	}

	atParams = ConvertToParamAttributes(attrMap, subAtPresent)
	if len(atParams) != 4 {
		t.Errorf("Incorrect AttributeParam list")
	}

	nameParam = findAtParam("name", atParams)

	count = 0
	for _, k := range nameParam.SubAts {
		if k == "formatted" || k == "givenname" {
			count++
		}
	}

	if count != 2 {
		t.Errorf("Incorrect children of the complex attribute %s", nameParam.Name)
	}
}

func TestParseAttrsWithUrn(t *testing.T) {
	attrMap, subAtPresent := SplitAttrCsv("urn:scim:schemas:corE:1.0:userName, urn:scim:schemas:corE:1.0:name.formatted, urn:scim:schemas:corE:1.0:Name, urn:scim:schemas:corE:1.0:Name.GIVEnname, urn:scim:schemas:extension:enterprise:1.0:employeeNumber", restypes)
	if !(attrMap["urn:scim:schemas:extension:enterprise:1.0:employeenumber"] == 1 && attrMap["username"] == 1 && attrMap["name"] == 1 && attrMap["name.formatted"] == 1 && attrMap["name.givenname"] == 1) {
		t.Errorf("Incorrect extensions attribute parsing")
	}

	if !subAtPresent {
		t.Errorf("The subAtPresent flag must be true")
	}

	atParams := ConvertToParamAttributes(attrMap, subAtPresent)
	if len(atParams) != 3 {
		t.Errorf("Incorrect AttributeParam list")
	}

	nameParam := findAtParam("name", atParams)
	count := 0
	for _, k := range nameParam.SubAts {
		if k == "formatted" || k == "givenname" {
			count++
		}
	}

	if count != 0 {
		t.Errorf("Incorrect children of the complex attribute %s", nameParam.Name)
	}

	nameParam = findAtParam("urn:scim:schemas:extension:enterprise:1.0:employeenumber", atParams)
	if nameParam == nil {
		t.Errorf("Could not find employeenumber attribute")
	}
}

func findAtParam(name string, atParams []*AttributeParam) *AttributeParam {
	for _, p := range atParams {
		if p.Name == name {
			return p
		}
	}
	return nil
}
