package ldapmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scimdrift/scimd/schema"
)

func TestToLdapValueBoolean(t *testing.T) {
	at := &schema.AttrType{Name: "active", Type: "boolean"}

	v, err := ToLdapValue(at, true)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", v)

	v, err = ToLdapValue(at, false)
	require.NoError(t, err)
	assert.Equal(t, "FALSE", v)

	_, err = ToLdapValue(at, "not-a-bool")
	assert.Error(t, err)
}

func TestToLdapValueDatetime(t *testing.T) {
	at := &schema.AttrType{Name: "installedDate", Type: "datetime"}

	// 2016-05-17T14:19:14Z in millis since epoch
	millis := int64(1463494754000)
	v, err := ToLdapValue(at, millis)
	require.NoError(t, err)
	assert.Equal(t, "20160517141914.000000Z", v)
}

func TestToLdapValueIntegerAndDecimal(t *testing.T) {
	intAt := &schema.AttrType{Name: "rating", Type: "integer"}
	v, err := ToLdapValue(intAt, int64(42))
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	decAt := &schema.AttrType{Name: "price", Type: "decimal"}
	v, err = ToLdapValue(decAt, 7.2)
	require.NoError(t, err)
	assert.Equal(t, "7.2", v)
}

func TestToLdapValueBinaryRejectsInvalidBase64(t *testing.T) {
	at := &schema.AttrType{Name: "photo", Type: "binary"}
	_, err := ToLdapValue(at, "not base64 at all!!")
	assert.Error(t, err)

	v, err := ToLdapValue(at, "aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", v)
}

func TestFromLdapValueRoundTripsToLdapValue(t *testing.T) {
	boolAt := &schema.AttrType{Name: "active", Type: "boolean"}
	rendered, err := ToLdapValue(boolAt, true)
	require.NoError(t, err)
	parsed, err := FromLdapValue(boolAt, rendered)
	require.NoError(t, err)
	assert.Equal(t, true, parsed)

	dtAt := &schema.AttrType{Name: "installedDate", Type: "datetime"}
	millis := int64(1463494754000)
	rendered, err = ToLdapValue(dtAt, millis)
	require.NoError(t, err)
	parsed, err = FromLdapValue(dtAt, rendered)
	require.NoError(t, err)
	assert.InDelta(t, float64(millis), parsed.(float64), 1)
}
