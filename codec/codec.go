// Package codec implements the SCIM 1.0 wire codecs (§4.3): two
// implementations — JSON and XML — of a shared Marshaller/Unmarshaller
// contract, so the server and client can be parameterized by content
// type. Both build on base.Resource's generic map representation
// (base.Resource.ToGenericMap / base.ToResource); only the wire framing
// differs between them.
package codec

import (
	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/schema"
)

// MediaType names the two content types a SCIM 1.0 endpoint negotiates
// between (§6).
type MediaType string

const (
	JSON MediaType = "application/json"
	XML  MediaType = "application/xml"
)

// Marshaller renders a base.Resource to its wire representation.
type Marshaller interface {
	Marshal(rs *base.Resource) ([]byte, error)
}

// Unmarshaller parses a wire body into a base.Resource against the
// schemas/resource types known to a registry.
type Unmarshaller interface {
	// Unmarshal parses data as a resource of type rt. sm is the schema
	// set keyed by schema id (callers build it from
	// schema.Registry.Schemas).
	Unmarshal(data []byte, rt *schema.ResourceType, sm map[string]*schema.Schema) (*base.Resource, error)
}

// Codec bundles both directions for one media type.
type Codec interface {
	Marshaller
	Unmarshaller
	MediaType() MediaType
}

// ForMediaType returns the Codec registered for a negotiated media type,
// defaulting to JSON (SCIM 1.0 leniency) when mt is unrecognized.
func ForMediaType(mt MediaType) Codec {
	switch mt {
	case XML:
		return &XMLCodec{}
	default:
		return &JSONCodec{}
	}
}
