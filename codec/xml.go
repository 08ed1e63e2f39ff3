package codec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/schema"
)

// XMLCodec implements Codec over the SCIM 1.0 XML representation using a
// namespace-aware, whitespace-stripped, non-validating DOM (§4.3). It
// shares every attribute-conversion and invariant-enforcement rule with
// JSONCodec by building on the same base.ParseSimpleAttr/ParseComplexAttr
// constructors; only how a raw value is read off (or written onto) the
// DOM differs.
//
// A plural attribute is rendered as a wrapper element (the attribute
// name) containing one child per value; the child's own tag name is not
// significant on read (any element is accepted, per §4.3 step 4) and is
// the attribute's singularized name on write (emails -> email), matching
// the historical SCIM 1.0 XSD convention. An extension schema's
// attributes are nested under a container element whose default
// namespace is the extension's URI.
type XMLCodec struct{}

func (XMLCodec) MediaType() MediaType { return XML }

func (XMLCodec) Marshal(rs *base.Resource) ([]byte, error) {
	rt := rs.GetType()
	doc := etree.NewDocument()
	root := doc.CreateElement(rt.Name)
	root.CreateAttr("xmlns", rt.Schema)

	writeAtGroup(root, rs.Core, rt.GetMainSchema())

	uris := make([]string, 0, len(rs.Ext))
	for uri := range rs.Ext {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	for _, uri := range uris {
		atg := rs.Ext[uri]
		extEl := root.CreateElement(extensionElementName(rt, uri))
		extEl.CreateAttr("xmlns", uri)
		writeAtGroup(extEl, atg, rt.GetSchema(uri))
	}

	doc.Indent(2)
	return doc.WriteToBytes()
}

func writeAtGroup(parent *etree.Element, atg *base.AtGroup, sc *schema.Schema) {
	if sc == nil || atg == nil {
		return
	}

	for _, at := range sc.Attributes {
		name := strings.ToLower(at.Name)
		if at.IsComplex() {
			if ca := atg.ComplexAts[name]; ca != nil {
				writeComplex(parent, ca)
			}
		} else {
			if sa := atg.SimpleAts[name]; sa != nil {
				writeSimple(parent, sa)
			}
		}
	}
}

func writeSimple(parent *etree.Element, sa *base.SimpleAttribute) {
	at := sa.GetType()
	if at.MultiValued {
		wrapper := parent.CreateElement(at.Name)
		child := singularize(at.Name)
		for _, v := range sa.Values {
			el := wrapper.CreateElement(child)
			el.SetText(valToText(v, at))
		}
		return
	}

	el := parent.CreateElement(at.Name)
	el.SetText(valToText(sa.Values[0], at))
}

func writeComplex(parent *etree.Element, ca *base.ComplexAttribute) {
	at := ca.GetType()
	if at.MultiValued {
		wrapper := parent.CreateElement(at.Name)
		child := singularize(at.Name)
		for _, subMap := range ca.SubAts {
			el := wrapper.CreateElement(child)
			writeSubAts(el, subMap, at)
		}
		return
	}

	el := parent.CreateElement(at.Name)
	writeSubAts(el, ca.GetFirstSubAt(), at)
}

func writeSubAts(parent *etree.Element, subMap map[string]*base.SimpleAttribute, parentAt *schema.AttrType) {
	for _, sub := range parentAt.SubAttributes {
		name := strings.ToLower(sub.Name)
		sa, ok := subMap[name]
		if !ok {
			continue
		}
		el := parent.CreateElement(sa.GetType().Name)
		el.SetText(valToText(sa.Values[0], sa.GetType()))
	}
}

func valToText(v interface{}, at *schema.AttrType) string {
	switch strings.ToLower(at.Type) {
	case "boolean":
		return strconv.FormatBool(v.(bool))
	case "integer":
		return strconv.FormatInt(v.(int64), 10)
	case "decimal":
		return strconv.FormatFloat(v.(float64), 'f', -1, 64)
	case "datetime":
		millis := v.(int64)
		return time.Unix(0, millis*int64(time.Millisecond)).UTC().Format(time.RFC3339)
	default:
		return v.(string)
	}
}

func singularize(name string) string {
	switch {
	case strings.HasSuffix(name, "ies"):
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss"):
		return name[:len(name)-1]
	default:
		return name
	}
}

func extensionElementName(rt *schema.ResourceType, uri string) string {
	sc := rt.GetSchema(uri)
	if sc != nil && sc.Name != "" {
		return strings.ReplaceAll(sc.Name, " ", "")
	}
	return "Extension"
}

func (XMLCodec) Unmarshal(data []byte, rt *schema.ResourceType, sm map[string]*schema.Schema) (rs *base.Resource, err error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, base.NewBadRequestError("malformed XML: " + err.Error())
	}

	root := doc.Root()
	if root == nil {
		return nil, base.NewBadRequestError("empty XML document")
	}
	if !strings.EqualFold(root.Tag, rt.Name) {
		return nil, base.NewBadRequestError(fmt.Sprintf("root element %s does not match resource type %s", root.Tag, rt.Name))
	}

	rs = base.NewResource(rt)

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

	mainSc := rt.GetMainSchema()
	for _, child := range root.ChildElements() {
		ns := child.NamespaceURI()
		if ns != "" && ns != rt.Schema {
			extSc := rt.GetSchema(ns)
			if extSc == nil {
				continue // unknown extension namespace: dropped per §4.3 step 3
			}
			for _, grandchild := range child.ChildElements() {
				parseOneElement(grandchild, extSc, rs)
			}
			continue
		}
		parseOneElement(child, mainSc, rs)
	}

	return rs, nil
}

func parseOneElement(el *etree.Element, sc *schema.Schema, rs *base.Resource) {
	name := strings.ToLower(el.Tag)
	at, ok := sc.AttrMap[name]
	if !ok {
		return // unknown elements are dropped
	}

	if at.IsComplex() {
		if ca := parseComplexElement(el, at); ca != nil {
			rs.AddComplexAt(ca)
		}
		return
	}

	if sa := parseSimpleElement(el, at); sa != nil {
		rs.AddSimpleAt(sa)
	}
}

func parseSimpleElement(el *etree.Element, at *schema.AttrType) *base.SimpleAttribute {
	if at.MultiValued {
		children := el.ChildElements()
		if len(children) == 0 {
			return nil
		}
		vals := make([]interface{}, 0, len(children))
		for _, c := range children {
			vals = append(vals, rawSimpleVal(strings.TrimSpace(c.Text()), at))
		}
		return base.ParseSimpleAttr(at, vals)
	}

	return base.ParseSimpleAttr(at, rawSimpleVal(strings.TrimSpace(el.Text()), at))
}

func parseComplexElement(el *etree.Element, at *schema.AttrType) *base.ComplexAttribute {
	if at.MultiValued {
		children := el.ChildElements()
		arr := make([]interface{}, 0, len(children))
		for _, c := range children {
			arr = append(arr, buildSubAtMap(c, at))
		}
		return base.ParseComplexAttr(at, arr)
	}

	return base.ParseComplexAttr(at, buildSubAtMap(el, at))
}

func buildSubAtMap(el *etree.Element, parentAt *schema.AttrType) map[string]interface{} {
	m := make(map[string]interface{})
	for _, c := range el.ChildElements() {
		subName := strings.ToLower(c.Tag)
		subAt, ok := parentAt.SubAttrMap[subName]
		if !ok {
			continue
		}
		m[c.Tag] = rawSimpleVal(strings.TrimSpace(c.Text()), subAt)
	}
	return m
}

func rawSimpleVal(text string, at *schema.AttrType) interface{} {
	switch strings.ToLower(at.Type) {
	case "boolean":
		b, err := strconv.ParseBool(text)
		if err != nil {
			panic(base.NewBadRequestError("invalid boolean value " + text))
		}
		return b
	case "integer", "decimal":
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			panic(base.NewBadRequestError("invalid numeric value " + text))
		}
		return f
	default:
		return text
	}
}
