package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scimdrift/scimd/base"
)

func TestXMLCodecRoundTripSimpleAndComplex(t *testing.T) {
	reg, rt := newCodecTestRegistry(t)
	sm := schemaMap(reg)

	rs := base.NewResource(rt)
	require.NoError(t, rs.AddSA("username", "bjensen"))
	require.NoError(t, rs.AddCA("name", map[string]interface{}{
		"familyname": "Jensen",
		"givenname":  "Barbara",
	}))
	require.NoError(t, rs.AddCA("emails",
		map[string]interface{}{"value": "bjensen@example.com", "type": "work"},
		map[string]interface{}{"value": "babs@example.com"},
	))

	c := XMLCodec{}
	data, err := c.Marshal(rs)
	require.NoError(t, err)

	doc := string(data)
	assert.Contains(t, doc, "bjensen")
	assert.Contains(t, doc, "<email>", "multiValued emails must be wrapped and singularized on write")

	out, err := c.Unmarshal(data, rt, sm)
	require.NoError(t, err)

	attr := out.GetAttr("username")
	require.NotNil(t, attr)
	sa, ok := attr.(*base.SimpleAttribute)
	require.True(t, ok)
	assert.Equal(t, "bjensen", sa.Values[0])

	nameAttr := out.GetAttr("name")
	require.NotNil(t, nameAttr)
	ca, ok := nameAttr.(*base.ComplexAttribute)
	require.True(t, ok)
	fam := ca.GetFirstSubAt()["familyname"]
	require.NotNil(t, fam)
	assert.Equal(t, "Jensen", fam.Values[0])
}

func TestXMLCodecUnmarshalRejectsMismatchedRoot(t *testing.T) {
	_, rt := newCodecTestRegistry(t)
	c := XMLCodec{}

	_, err := c.Unmarshal([]byte(`<NotAUser xmlns="urn:scim:schemas:core:1.0"><userName>x</userName></NotAUser>`), rt, nil)
	assert.Error(t, err)
}

func TestXMLCodecUnmarshalRejectsMalformedXML(t *testing.T) {
	_, rt := newCodecTestRegistry(t)
	c := XMLCodec{}

	_, err := c.Unmarshal([]byte(`<User><userName>unterminated`), rt, nil)
	assert.Error(t, err)
}
