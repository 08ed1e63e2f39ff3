package ldapmap

import (
	"fmt"
	"strings"

	ldap "github.com/go-ldap/ldap/v3"

	"github.com/scimdrift/scimd/base"
)

// Translate renders a parsed SCIM filter tree as an RFC 4515 LDAP filter
// string, pushing the search down to the directory instead of evaluating
// it in memory. Every leaf's comparison value is rendered through
// ldapValue, which defers to the same ToLdapValue a PostResource/PutResource
// call used to write the attribute, so gt/lt/ge/le on datetime attributes
// compare the generalized-time string lexically against exactly what is
// on disk.
//
// NOT is rendered as RFC 4515's own "!" rather than being pushed down
// into De Morgan'd children, since LDAP's negation operates identically
// on leaf and compound expressions.
func Translate(fn *base.FilterNode, t *EntryTemplate) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("ldapmap: nil filter node")
	}

	switch fn.Op {
	case "AND":
		l, err := Translate(fn.Children[0], t)
		if err != nil {
			return "", err
		}
		r, err := Translate(fn.Children[1], t)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(&%s%s)", l, r), nil

	case "OR":
		l, err := Translate(fn.Children[0], t)
		if err != nil {
			return "", err
		}
		r, err := Translate(fn.Children[1], t)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(|%s%s)", l, r), nil

	case "NOT":
		c, err := Translate(fn.Children[0], t)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(!%s)", c), nil
	}

	return translateLeaf(fn, t)
}

func translateLeaf(fn *base.FilterNode, t *EntryTemplate) (string, error) {
	ldapAttr, err := resolveLdapAttr(fn.Name, t)
	if err != nil {
		return "", err
	}

	if fn.Op == "PR" {
		return fmt.Sprintf("(%s=*)", ldapAttr), nil
	}

	val, err := ldapValue(fn)
	if err != nil {
		return "", err
	}
	esc := ldap.EscapeFilter(val)

	switch fn.Op {
	case "EQ":
		return fmt.Sprintf("(%s=%s)", ldapAttr, esc), nil
	case "NE":
		return fmt.Sprintf("(!(%s=%s))", ldapAttr, esc), nil
	case "CO":
		return fmt.Sprintf("(%s=*%s*)", ldapAttr, esc), nil
	case "SW":
		return fmt.Sprintf("(%s=%s*)", ldapAttr, esc), nil
	case "EW":
		return fmt.Sprintf("(%s=*%s)", ldapAttr, esc), nil
	case "GE":
		return fmt.Sprintf("(%s>=%s)", ldapAttr, esc), nil
	case "LE":
		return fmt.Sprintf("(%s<=%s)", ldapAttr, esc), nil
	case "GT":
		return fmt.Sprintf("(&(%s>=%s)(!(%s=%s)))", ldapAttr, esc, ldapAttr, esc), nil
	case "LT":
		return fmt.Sprintf("(&(%s<=%s)(!(%s=%s)))", ldapAttr, esc, ldapAttr, esc), nil
	}

	return "", fmt.Errorf("ldapmap: unsupported filter operator %s", fn.Op)
}

// resolveLdapAttr maps a dotted SCIM attribute path (e.g. "name.familyname",
// "emails.value") onto the LDAP attribute that carries it: the mapping
// registered under the path itself, otherwise the parent's mapping when
// that is KindPlural. No CanonicalType is consulted, so a plural path
// resolves to whichever mapping is registered under that path or parent.
func resolveLdapAttr(scimPath string, t *EntryTemplate) (string, error) {
	if m, ok := t.Mapping(scimPath); ok {
		return m.LdapAttrName, nil
	}

	dot := strings.LastIndexByte(scimPath, '.')
	if dot < 0 {
		return "", fmt.Errorf("ldapmap: no mapping for attribute %q", scimPath)
	}
	parent := scimPath[:dot]

	if m, ok := t.Mapping(parent); ok && m.Kind == KindPlural {
		return m.LdapAttrName, nil
	}

	return "", fmt.Errorf("ldapmap: no mapping for attribute %q", scimPath)
}

// ldapValue renders a filter leaf's comparison value the same way
// ToLdapValue rendered it when the entry was written, so eq/gt/lt/ge/le
// compare against exactly what is stored in the directory.
func ldapValue(fn *base.FilterNode) (string, error) {
	at := fn.GetAtType()
	if at == nil {
		return fn.Value, nil
	}

	switch strings.ToLower(at.Type) {
	case "boolean", "datetime", "integer", "decimal":
		return ToLdapValue(at, fn.NormValue)
	default:
		return fn.Value, nil
	}
}
