// Package ldapmap implements the declarative SCIM-attribute-to-LDAP-entry
// mapping described for the LDAP backend: one EntryTemplate per resource
// type, loaded from JSON, that drives DN construction, attribute
// conversion in both directions and RFC 4515 filter translation.
package ldapmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	logger "github.com/juju/loggo"

	"github.com/scimdrift/scimd/schema"
)

var log = logger.GetLogger("scimd.ldapmap")

// Kind classifies how a SCIM attribute maps onto one or more LDAP
// attributes.
type Kind string

const (
	// KindSimple maps one scalar SCIM attribute to one LDAP attribute.
	KindSimple Kind = "simple"
	// KindComplex maps each sub-attribute of a single-valued complex
	// attribute to its own LDAP attribute.
	KindComplex Kind = "complex"
	// KindPlural maps a canonical "type" token of a multi-valued complex
	// attribute (e.g. emails/work) to a distinct LDAP attribute.
	KindPlural Kind = "plural"
	// KindDerived computes a read-only SCIM value from other LDAP
	// attributes; it is never written back to the directory.
	KindDerived Kind = "derived"
)

// AttributeMapping binds one SCIM attribute path to its LDAP
// representation.
type AttributeMapping struct {
	ScimAttrPath string `json:"scimAttrPath"`
	LdapAttrName string `json:"ldapAttrName"`
	Kind         Kind   `json:"kind,omitempty"`
	// CanonicalType is set on KindPlural mappings: the "type" sub-attribute
	// value this LDAP attribute corresponds to, e.g. "work".
	CanonicalType string `json:"canonicalType,omitempty"`
	// PrimaryMarkerAttr, if set on a KindPlural mapping, names the LDAP
	// attribute recording which canonical-typed value is flagged primary.
	PrimaryMarkerAttr string `json:"primaryMarkerAttr,omitempty"`
	// Format is a "{sub} {sub}" template used by complex/derived mappings,
	// parsed at load time into an fmt-style template plus SubAtNames.
	Format string `json:"format,omitempty"`

	AtType     *schema.AttrType `json:"-"`
	subAtNames []string         // ordered sub-attribute names referenced by Format
}

// EntryTemplate is the full declarative mapping for one resource type.
type EntryTemplate struct {
	Type          string              `json:"type"`
	ObjectClasses []string            `json:"objectClasses"`
	DnTemplate    string              `json:"dnTemplate"`
	Attributes    []*AttributeMapping `json:"attributes"`

	Endpoint  string                       `json:"-"`
	dnAtPath  string                       // the SCIM attribute path that fills the DN's leading RDN slot
	byScim    map[string]*AttributeMapping // keyed by lowercase scimAttrPath
	byLdap    map[string][]*AttributeMapping
}

// PeekResourceType reads only the "type" field of a not-yet-resolved
// EntryTemplate document, so a loader can look up the matching
// *schema.ResourceType before calling Load.
func PeekResourceType(data []byte) (string, bool) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.Type == "" {
		return "", false
	}
	return head.Type, true
}

// Load parses an EntryTemplate definition and resolves every scimAttrPath
// against the resource type's schema(s).
func Load(data []byte, rt *schema.ResourceType) (*EntryTemplate, error) {
	tmpl := &EntryTemplate{}
	if err := json.Unmarshal(data, tmpl); err != nil {
		return nil, err
	}

	tmpl.Endpoint = rt.Endpoint
	tmpl.byScim = make(map[string]*AttributeMapping)
	tmpl.byLdap = make(map[string][]*AttributeMapping)

	for _, m := range tmpl.Attributes {
		path := strings.ToLower(m.ScimAttrPath)
		m.ScimAttrPath = path

		at, ok := rt.GetAtType(path)
		if !ok {
			return nil, fmt.Errorf("ldapmap: SCIM attribute %q not found on resource type %s", path, rt.Name)
		}
		m.AtType = at

		if m.Kind == "" {
			switch {
			case at.MultiValued:
				m.Kind = KindPlural
			case at.IsComplex():
				m.Kind = KindComplex
			default:
				m.Kind = KindSimple
			}
		}

		if m.Format != "" {
			parseFormat(m)
		}

		tmpl.byScim[path] = m
		ldapKey := strings.ToLower(m.LdapAttrName)
		tmpl.byLdap[ldapKey] = append(tmpl.byLdap[ldapKey], m)
	}

	if err := parseDnTemplate(tmpl); err != nil {
		return nil, err
	}

	return tmpl, nil
}

// SubAtNames returns the ordered list of names substituted into a
// "complex"/"derived" mapping's Format template (the source LDAP
// attribute names for Kind == KindDerived).
func (m *AttributeMapping) SubAtNames() []string {
	return m.subAtNames
}

// Mapping returns the attribute mapping for a SCIM attribute path, if any.
func (t *EntryTemplate) Mapping(scimPath string) (*AttributeMapping, bool) {
	m, ok := t.byScim[strings.ToLower(scimPath)]
	return m, ok
}

// MappingsForLdapAttr returns every mapping that reads from/writes to the
// given LDAP attribute name (more than one for plural attributes split
// across several LDAP attributes, e.g. mail/homeEmail).
func (t *EntryTemplate) MappingsForLdapAttr(ldapAttr string) []*AttributeMapping {
	return t.byLdap[strings.ToLower(ldapAttr)]
}

// parseFormat converts a "{givenName} {familyName}" style template into
// an fmt-style "%s %s" template plus the ordered list of sub-attribute
// names it substitutes, mirroring the teacher's bracket-scanning approach
// for its own format strings.
func parseFormat(m *AttributeMapping) {
	var buf bytes.Buffer
	var atName string
	rb := bytes.NewBufferString(m.Format)

	for {
		r, _, err := rb.ReadRune()
		if err != nil {
			break
		}
		if r != '{' {
			buf.WriteRune(r)
			continue
		}
		for {
			r2, _, err := rb.ReadRune()
			if err != nil {
				buf.WriteString("{" + atName)
				log.Warningf("ldapmap: unterminated { in format for %s", m.ScimAttrPath)
				m.Format = buf.String()
				return
			}
			if r2 == '}' {
				atName = strings.ToLower(strings.TrimSpace(atName))
				m.subAtNames = append(m.subAtNames, atName)
				buf.WriteString("%s")
				atName = ""
				break
			}
			atName += string(r2)
		}
	}

	m.Format = buf.String()
}

// parseDnTemplate extracts the "{attr}" slot from a DN template such as
// "uid={userName},ou=Users" into an fmt-style template plus the SCIM
// attribute path that fills it.
func parseDnTemplate(t *EntryTemplate) error {
	start := strings.IndexByte(t.DnTemplate, '{')
	if start < 0 {
		return fmt.Errorf("ldapmap: dnTemplate %q has no {attr} slot", t.DnTemplate)
	}
	end := strings.IndexByte(t.DnTemplate, '}')
	if end < start {
		return fmt.Errorf("ldapmap: dnTemplate %q has mismatched braces", t.DnTemplate)
	}

	t.dnAtPath = strings.ToLower(strings.TrimSpace(t.DnTemplate[start+1 : end]))
	t.DnTemplate = t.DnTemplate[:start] + "%s" + t.DnTemplate[end+1:]
	return nil
}

// DnAttrPath returns the SCIM attribute path whose value fills this
// template's leading RDN (e.g. "username").
func (t *EntryTemplate) DnAttrPath() string {
	return t.dnAtPath
}

// BuildDN renders the DN for a given RDN value under the configured base.
func (t *EntryTemplate) BuildDN(rdnValue, baseDN string) string {
	dn := fmt.Sprintf(t.DnTemplate, rdnValue)
	if baseDN != "" {
		dn += "," + baseDN
	}
	return dn
}

// LoadLdapTemplates walks a directory of LDAP mapping-template JSON files
// (§4.6), resolving each against the resource type it names via its
// "type" field. A template whose resource type isn't registered is
// skipped with a warning rather than aborting startup.
func LoadLdapTemplates(ldapTmplPath string, reg *schema.Registry) map[string]*EntryTemplate {
	tmplMap := make(map[string]*EntryTemplate)

	dir, err := os.Open(ldapTmplPath)
	if err != nil {
		log.Criticalf("Could not open LDAP templates directory %s [%s]", ldapTmplPath, err)
		return tmplMap
	}
	defer dir.Close()

	files, err := dir.Readdir(-1)
	if err != nil {
		return tmplMap
	}

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(strings.ToLower(f.Name()), ".json") {
			continue
		}

		fPath := filepath.Join(ldapTmplPath, f.Name())
		tmplData, err := ioutil.ReadFile(fPath)
		if err != nil {
			log.Criticalf("Could not read LDAP template content from %s [%s]", fPath, err)
			continue
		}

		rtName, ok := PeekResourceType(tmplData)
		if !ok {
			log.Warningf("LDAP template %s does not name a resource type, skipping", fPath)
			continue
		}

		rt, ok := reg.ResourceTypeByName(rtName)
		if !ok {
			log.Warningf("No resource type named %s registered, skipping LDAP template %s", rtName, fPath)
			continue
		}

		entry, err := Load(tmplData, rt)
		if err != nil {
			log.Criticalf("Could not parse LDAP template from %s [%s]", fPath, err)
			continue
		}

		tmplMap[entry.Type] = entry
	}

	return tmplMap
}
