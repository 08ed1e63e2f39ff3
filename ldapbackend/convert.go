package ldapbackend

import (
	"fmt"
	"strings"

	ldap "github.com/go-ldap/ldap/v3"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/ldapmap"
	"github.com/scimdrift/scimd/schema"
)

// resourceToLdapAttrs renders rs's writable attributes as an
// attribute-name -> values map ready to hand to ldap.NewAddRequest /
// ModifyRequest, per the four mapping kinds of §4.6. Kind "derived"
// attributes are read-only and never appear here.
func resourceToLdapAttrs(rs *base.Resource, t *ldapmap.EntryTemplate) (map[string][]string, error) {
	out := make(map[string][]string)

	for _, m := range t.Attributes {
		switch m.Kind {
		case ldapmap.KindSimple, ldapmap.KindComplex:
			at := rs.GetAttr(m.ScimAttrPath)
			if at == nil || !at.IsSimple() {
				continue
			}
			sa := at.GetSimpleAt()
			for _, v := range sa.Values {
				s, err := ldapmap.ToLdapValue(m.AtType, v)
				if err != nil {
					return nil, err
				}
				out[m.LdapAttrName] = append(out[m.LdapAttrName], s)
			}

		case ldapmap.KindPlural:
			parent, sub := splitParent(m.ScimAttrPath)
			at := rs.GetAttr(parent)
			if at == nil || at.IsSimple() {
				continue
			}
			ca := at.GetComplexAt()
			for _, subMap := range ca.SubAts {
				typeSa, ok := subMap["type"]
				if !ok || len(typeSa.Values) == 0 {
					continue
				}
				if !strings.EqualFold(fmt.Sprintf("%v", typeSa.Values[0]), m.CanonicalType) {
					continue
				}
				valSa, ok := subMap[sub]
				if !ok || len(valSa.Values) == 0 {
					continue
				}
				s, err := ldapmap.ToLdapValue(valSa.GetType(), valSa.Values[0])
				if err != nil {
					return nil, err
				}
				out[m.LdapAttrName] = append(out[m.LdapAttrName], s)

				if m.PrimaryMarkerAttr != "" {
					if primSa, ok := subMap["primary"]; ok && len(primSa.Values) > 0 {
						if b, _ := primSa.Values[0].(bool); b {
							out[m.PrimaryMarkerAttr] = []string{m.CanonicalType}
						}
					}
				}
			}
		}
	}

	return out, nil
}

// entryToResource builds a Resource from an LDAP search entry using the
// reverse of resourceToLdapAttrs, plus derived-attribute computation.
func entryToResource(entry *ldap.Entry, rt *schema.ResourceType, t *ldapmap.EntryTemplate) (*base.Resource, error) {
	rs := base.NewResource(rt)

	complexParents := make(map[string]map[string]interface{})
	pluralParents := make(map[string][]map[string]interface{})

	for _, m := range t.Attributes {
		switch m.Kind {
		case ldapmap.KindSimple:
			vals := entry.GetAttributeValues(m.LdapAttrName)
			if len(vals) == 0 {
				continue
			}
			conv := make([]interface{}, 0, len(vals))
			for _, raw := range vals {
				v, err := ldapmap.FromLdapValue(m.AtType, raw)
				if err != nil {
					return nil, err
				}
				conv = append(conv, v)
			}
			if err := rs.AddSA(m.ScimAttrPath, conv...); err != nil {
				return nil, err
			}

		case ldapmap.KindComplex:
			raw := entry.GetAttributeValue(m.LdapAttrName)
			if raw == "" {
				continue
			}
			parent, sub := splitParent(m.ScimAttrPath)
			v, err := ldapmap.FromLdapValue(m.AtType, raw)
			if err != nil {
				return nil, err
			}
			sm := complexParents[parent]
			if sm == nil {
				sm = make(map[string]interface{})
				complexParents[parent] = sm
			}
			sm[sub] = v

		case ldapmap.KindPlural:
			raws := entry.GetAttributeValues(m.LdapAttrName)
			if len(raws) == 0 {
				continue
			}
			parent, sub := splitParent(m.ScimAttrPath)
			isPrimary := false
			if m.PrimaryMarkerAttr != "" {
				isPrimary = strings.EqualFold(entry.GetAttributeValue(m.PrimaryMarkerAttr), m.CanonicalType)
			}
			for _, raw := range raws {
				v, err := ldapmap.FromLdapValue(m.AtType, raw)
				if err != nil {
					return nil, err
				}
				pluralParents[parent] = append(pluralParents[parent], map[string]interface{}{
					sub:       v,
					"type":    m.CanonicalType,
					"primary": isPrimary,
				})
			}

		case ldapmap.KindDerived:
			if v := computeDerived(entry, m); v != "" {
				if err := rs.AddSA(m.ScimAttrPath, v); err != nil {
					return nil, err
				}
			}
		}
	}

	for parent, sm := range complexParents {
		if err := rs.AddCA(parent, sm); err != nil {
			return nil, err
		}
	}
	for parent, list := range pluralParents {
		if err := rs.AddCA(parent, list...); err != nil {
			return nil, err
		}
	}

	rs.UpdateSchemas()
	return rs, nil
}

// computeDerived renders a Kind "derived" mapping's Format template,
// substituting the raw LDAP attribute values named by its {braces}
// (parsed at Load time into subAtNames), e.g. Format "{cn}" derives
// name.formatted straight from the entry's cn.
func computeDerived(entry *ldap.Entry, m *ldapmap.AttributeMapping) string {
	if m.Format == "" {
		return entry.GetAttributeValue(m.LdapAttrName)
	}
	args := make([]interface{}, 0)
	for _, ldapAttr := range m.SubAtNames() {
		args = append(args, entry.GetAttributeValue(ldapAttr))
	}
	return fmt.Sprintf(m.Format, args...)
}

func splitParent(path string) (parent, sub string) {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return path, ""
	}
	return path[:dot], path[dot+1:]
}
