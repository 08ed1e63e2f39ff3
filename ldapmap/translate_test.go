package ldapmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/schema"
)

func newTestTemplate(mappings ...*AttributeMapping) *EntryTemplate {
	t := &EntryTemplate{byScim: make(map[string]*AttributeMapping), byLdap: make(map[string][]*AttributeMapping)}
	for _, m := range mappings {
		t.byScim[m.ScimAttrPath] = m
	}
	return t
}

func boolLeaf(name, value string, at *schema.AttrType) *base.FilterNode {
	fn := &base.FilterNode{Op: "EQ", Name: name, Value: value}
	fn.SetAtType(at)
	return fn
}

// TestLdapValueMatchesToLdapValue is the regression test for the bug where
// ldapValue re-derived its own boolean/datetime rendering instead of
// sharing ToLdapValue's: a stored TRUE/FALSE or fractional generalized
// time would never lexically match what translateLeaf produced.
func TestLdapValueMatchesToLdapValue(t *testing.T) {
	boolAt := &schema.AttrType{Name: "active", Type: "boolean"}
	tmpl := newTestTemplate(&AttributeMapping{ScimAttrPath: "active", LdapAttrName: "isActive", AtType: boolAt})

	fn := boolLeaf("active", "true", boolAt)
	got, err := Translate(fn, tmpl)
	require.NoError(t, err)

	wantVal, err := ToLdapValue(boolAt, true)
	require.NoError(t, err)
	assert.Equal(t, "(isActive="+wantVal+")", got)
	assert.NotContains(t, got, "=true)", "the raw strconv.FormatBool rendering must not leak into the filter")
}

func TestLdapValueMatchesToLdapValueForDatetime(t *testing.T) {
	dtAt := &schema.AttrType{Name: "installedDate", Type: "datetime"}
	tmpl := newTestTemplate(&AttributeMapping{ScimAttrPath: "installeddate", LdapAttrName: "installedDate", AtType: dtAt})

	fn := &base.FilterNode{Op: "GT", Name: "installeddate", Value: "2016-05-17T14:19:14Z"}
	fn.SetAtType(dtAt)

	got, err := Translate(fn, tmpl)
	require.NoError(t, err)

	wantVal, err := ToLdapValue(dtAt, fn.NormValue)
	require.NoError(t, err)
	assert.Contains(t, got, wantVal)
	assert.NotContains(t, got, "20160517141914Z)", "the non-fractional rendering must not leak into the filter")
}

func TestTranslateCompoundFilter(t *testing.T) {
	userNameAt := &schema.AttrType{Name: "userName", Type: "string"}
	activeAt := &schema.AttrType{Name: "active", Type: "boolean"}
	tmpl := newTestTemplate(
		&AttributeMapping{ScimAttrPath: "username", LdapAttrName: "uid", AtType: userNameAt},
		&AttributeMapping{ScimAttrPath: "active", LdapAttrName: "isActive", AtType: activeAt},
	)

	left := &base.FilterNode{Op: "EQ", Name: "username", Value: "bjensen"}
	left.SetAtType(userNameAt)
	right := boolLeaf("active", "true", activeAt)

	fn := &base.FilterNode{Op: "AND", Children: []*base.FilterNode{left, right}}

	got, err := Translate(fn, tmpl)
	require.NoError(t, err)
	assert.Equal(t, "(&(uid=bjensen)(isActive=TRUE))", got)
}

func TestResolveLdapAttrFallsBackToPluralParent(t *testing.T) {
	emailAt := &schema.AttrType{Name: "emails", Type: "complex", MultiValued: true}
	tmpl := newTestTemplate(&AttributeMapping{ScimAttrPath: "emails", LdapAttrName: "mail", Kind: KindPlural, AtType: emailAt})

	attr, err := resolveLdapAttr("emails.value", tmpl)
	require.NoError(t, err)
	assert.Equal(t, "mail", attr)

	_, err = resolveLdapAttr("nonexistent.value", tmpl)
	assert.Error(t, err)
}
