package base

import "context"

// Backend is the pluggable resource-provisioning contract the Resource
// Server dispatches onto (§4.8). Every method takes the typed request
// context that carries everything it needs and must be safe for
// concurrent use by multiple in-flight requests; a Backend implementation
// owns whatever store it is materialized from (LDAP, SQL, in-memory) and
// is never exposed directly to the transport layer.
type Backend interface {
	GetResource(ctx context.Context, gc *GetContext) (*Resource, error)
	GetResources(ctx context.Context, sc *SearchContext) (*ListResponse, error)
	PostResource(ctx context.Context, cc *CreateContext) (*Resource, error)
	PutResource(ctx context.Context, rc *ReplaceContext) (*Resource, error)
	DeleteResource(ctx context.Context, dc *DeleteContext) error
	Authenticate(ctx context.Context, ar *AuthRequest) error
}
