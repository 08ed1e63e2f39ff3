package codec

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/schema"
)

// JSONCodec implements Codec over the SCIM 1.0 JSON representation:
// object keys in place of XML element names, with extension-schema
// attributes nested under a `"<schemaURI>": {...}` object key, as
// ParseResource already does for bodies carrying a top-level "schemas"
// array.
type JSONCodec struct{}

func (JSONCodec) MediaType() MediaType { return JSON }

// Marshal renders rs.ToGenericMap() as JSON; attribute ordering within a
// schema follows Go's map iteration (stdlib json has no stable key
// order), which is the behavior the teacher's own Resource.Serialize
// exhibits today.
func (JSONCodec) Marshal(rs *base.Resource) ([]byte, error) {
	obj := rs.ToGenericMap()
	return json.Marshal(obj)
}

// Unmarshal decodes a JSON body and builds a Resource from its generic
// map shape, bypassing base.ParseResource's "schemas" array resolution
// since the caller already knows which resource type the body targets.
func (JSONCodec) Unmarshal(data []byte, rt *schema.ResourceType, sm map[string]*schema.Schema) (*base.Resource, error) {
	var i interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&i); err != nil {
		return nil, base.NewBadRequestError(err.Error())
	}

	if reflect.TypeOf(i) == nil || reflect.TypeOf(i).Kind() != reflect.Map {
		return nil, base.NewBadRequestError("invalid JSON data")
	}

	return base.ToResource(rt, sm, i.(map[string]interface{}))
}
