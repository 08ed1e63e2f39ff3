package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/schema"
)

func newCodecTestRegistry(t *testing.T) (*schema.Registry, *schema.ResourceType) {
	reg, err := schema.NewRegistry()
	require.NoError(t, err)
	rt, ok := reg.ResourceType("/Users")
	require.True(t, ok, "core registry must expose /Users")
	return reg, rt
}

func schemaMap(reg *schema.Registry) map[string]*schema.Schema {
	sm := make(map[string]*schema.Schema)
	for _, sc := range reg.Schemas() {
		sm[sc.Id] = sc
	}
	return sm
}

func TestForMediaTypeDefaultsToJSON(t *testing.T) {
	assert.Equal(t, JSON, ForMediaType("").MediaType())
	assert.Equal(t, JSON, ForMediaType("bogus/type").MediaType())
	assert.Equal(t, XML, ForMediaType(XML).MediaType())
}

func TestJSONCodecRoundTrip(t *testing.T) {
	reg, rt := newCodecTestRegistry(t)
	sm := schemaMap(reg)

	rs := base.NewResource(rt)
	require.NoError(t, rs.AddSA("username", "bjensen"))
	require.NoError(t, rs.AddCA("name", map[string]interface{}{
		"familyname": "Jensen",
		"givenname":  "Barbara",
	}))

	c := JSONCodec{}
	data, err := c.Marshal(rs)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bjensen")

	out, err := c.Unmarshal(data, rt, sm)
	require.NoError(t, err)

	attr := out.GetAttr("username")
	require.NotNil(t, attr)
	sa, ok := attr.(*base.SimpleAttribute)
	require.True(t, ok)
	assert.Equal(t, "bjensen", sa.Values[0])
}

func TestJSONCodecUnmarshalRejectsNonObject(t *testing.T) {
	_, rt := newCodecTestRegistry(t)
	c := JSONCodec{}

	_, err := c.Unmarshal([]byte(`[1, 2, 3]`), rt, nil)
	assert.Error(t, err)

	_, err = c.Unmarshal([]byte(`not json`), rt, nil)
	assert.Error(t, err)
}
