// Copyright 2017 Keydap. All rights reserved.
// Licensed under the Apache License, Version 2.0, see LICENSE.

package base

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scimdrift/scimd/schema"
)

// resolveUrnPrefix maps the case-insensitive schema URN prefixing an
// attribute name (e.g. "urn:scim:schemas:extension:enterprise:1.0:") to
// the empty string when it names one of rTypes' own core schemas (core
// is implicit, so its prefix is dropped), or to the canonically-cased
// extension URN when it names one of their extensions. coreMatch tells
// the caller whether to also skip the colon that used to separate the
// prefix from the attribute name; an unrecognized prefix is returned
// unchanged, since §4.5 leaves qualifying an attribute with an unknown
// URN as the caller's problem, not this function's.
func resolveUrnPrefix(urn string, rTypes []*schema.ResourceType) (resolved string, coreMatch bool) {
	lower := strings.ToLower(urn)
	for _, rt := range rTypes {
		if lower == strings.ToLower(rt.Schema) {
			return "", true
		}
		for _, se := range rt.SchemaExtensions {
			if lower == strings.ToLower(se.Schema) {
				return se.Schema, false
			}
		}
	}
	return urn, false
}

// SplitAttrCsv parses a comma-separated "attributes"/"excludedAttributes"
// query value (§4.5) into a set of normalized, URN-resolved attribute
// paths, reporting whether any of them named a sub-attribute of a
// complex type (e.g. "name.familyName").
func SplitAttrCsv(csv string, rTypes []*schema.ResourceType) (attrMap map[string]int, subAtPresent bool) {
	attrMap = make(map[string]int)
	tokens := strings.Split(csv, ",")

outer:
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "." || strings.HasSuffix(t, ".") { // not a valid attribute name
			continue
		}

		tLen := len(t)
		if tLen == 0 {
			continue
		}

		t = strings.ToLower(t)
		colonPos := strings.LastIndex(t, ":")

		if colonPos > 0 {
			urn, coreMatch := resolveUrnPrefix(t[0:colonPos], rTypes)
			if coreMatch {
				colonPos++
				if colonPos >= tLen { // this is an invalid attribute, skip it
					continue outer
				}
			}

			t = urn + t[colonPos:]

			if urn == "" {
				// reset colonPos so the later (dotPos > colonPos) check is accurate
				colonPos = -1
			}
		}

		attrMap[t] = 1 // 0 is the default value for non-existing keys, so set the value to 1

		dotPos := strings.LastIndex(t, ".")
		if dotPos > colonPos {
			subAtPresent = true
		}
	}

	if len(attrMap) == 0 {
		return nil, false
	}

	return attrMap, subAtPresent
}

// ConvertToParamAttributes groups a flat attribute-path set produced by
// SplitAttrCsv into AttributeParam values, folding sibling sub-attributes
// of the same complex parent into one entry. "emails.type,emails.value"
// becomes a single AttributeParam named "emails" carrying both "type" and
// "value" as SubAts, which is what lets the response filter walk a
// complex attribute's children in one pass instead of per sub-attribute.
func ConvertToParamAttributes(attrMap map[string]int, subAtPresent bool) []*AttributeParam {
	if !subAtPresent {
		atpLst := make([]*AttributeParam, 0, len(attrMap))
		for k := range attrMap {
			j := &AttributeParam{Name: k}
			if pos := strings.LastIndex(k, ":"); pos > 0 {
				j.SchemaId = k[0:pos]
			}
			atpLst = append(atpLst, j)
		}
		return atpLst
	}

	tmp := make([]string, 0, len(attrMap))
	for k := range attrMap {
		tmp = append(tmp, k)
	}
	sort.Strings(tmp)

	atpLst := make([]*AttributeParam, 0, len(tmp))
	var prev *AttributeParam

	for _, k := range tmp {
		j := &AttributeParam{Name: k}

		colonPos := strings.LastIndex(k, ":")
		if colonPos > 0 {
			j.SchemaId = k[0:colonPos]
		}

		dotPos := strings.LastIndex(k, ".") // LastIndex to avoid the '.' that can occur in a URN
		if dotPos > 0 && dotPos > colonPos {
			if prev == nil || !strings.HasPrefix(k, prev.Name+".") {
				j.Name = j.SchemaId + k[0:dotPos]
				j.SubAts = []string{k[dotPos+1:]}
			} else {
				// sub-attribute of the attribute just emitted: fold it in,
				// but only if the parent itself wasn't separately requested -
				// "name.formatted, name" must still return all of "name"
				if prev.SubAts != nil {
					prev.SubAts = append(prev.SubAts, k[dotPos+1:])
				}
				continue
			}
		}

		atpLst = append(atpLst, j)
		prev = j
	}

	return atpLst
}

// FixSchemaUris rewrites a parsed filter tree's attribute names in place,
// resolving each leaf's URN prefix the same way SplitAttrCsv does for
// query-string attribute lists, so "filter" and "attributes" agree on
// what a bare attribute name without a URN prefix refers to.
func FixSchemaUris(node *FilterNode, rTypes []*schema.ResourceType) error {
	if colonPos := strings.LastIndex(node.Name, ":"); colonPos > 0 {
		urn, coreMatch := resolveUrnPrefix(node.Name[0:colonPos], rTypes)
		if coreMatch {
			colonPos++
			if colonPos >= len(node.Name) {
				return fmt.Errorf("invalid attribute %s in filter", node.Name)
			}
		}
		node.Name = urn + node.Name[colonPos:]
	}

	for _, ch := range node.Children {
		if err := FixSchemaUris(ch, rTypes); err != nil {
			return err
		}
	}

	return nil
}
