package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/conf"
	"github.com/scimdrift/scimd/schema"
)

// fakeBackend is a base.Backend double driven entirely by the fields a
// test sets before issuing a request; it never touches a real directory.
type fakeBackend struct {
	getResource    func(*base.GetContext) (*base.Resource, error)
	getResources   func(*base.SearchContext) (*base.ListResponse, error)
	postResource   func(*base.CreateContext) (*base.Resource, error)
	putResource    func(*base.ReplaceContext) (*base.Resource, error)
	deleteResource func(*base.DeleteContext) error
}

func (f *fakeBackend) GetResource(ctx context.Context, gc *base.GetContext) (*base.Resource, error) {
	return f.getResource(gc)
}

func (f *fakeBackend) GetResources(ctx context.Context, sc *base.SearchContext) (*base.ListResponse, error) {
	return f.getResources(sc)
}

func (f *fakeBackend) PostResource(ctx context.Context, cc *base.CreateContext) (*base.Resource, error) {
	return f.postResource(cc)
}

func (f *fakeBackend) PutResource(ctx context.Context, rc *base.ReplaceContext) (*base.Resource, error) {
	return f.putResource(rc)
}

func (f *fakeBackend) DeleteResource(ctx context.Context, dc *base.DeleteContext) error {
	return f.deleteResource(dc)
}

func (f *fakeBackend) Authenticate(ctx context.Context, ar *base.AuthRequest) error {
	return nil
}

type fakeCsn struct{ millis int64 }

func (c fakeCsn) TimeMillis() int64        { return c.millis }
func (c fakeCsn) ChangeCount() uint32      { return 0 }
func (c fakeCsn) ReplicaId() uint16        { return 1 }
func (c fakeCsn) ModificationCount() uint32 { return 0 }
func (c fakeCsn) String() string           { return "csn-1" }

func newTestServer(t *testing.T, be base.Backend) (*Server, *schema.ResourceType) {
	reg, err := schema.NewRegistry()
	require.NoError(t, err)

	rt, ok := reg.ResourceType("/Users")
	require.True(t, ok, "core registry must expose /Users")

	cfg := conf.Default()
	s := New(reg, be, cfg)
	return s, rt
}

func newTestUser(t *testing.T, rt *schema.ResourceType, id, userName string) *base.Resource {
	rs := base.NewResource(rt)
	require.NoError(t, rs.AddSA("username", userName))
	rs.SetId(id)
	rs.AddMeta()
	rs.UpdateLastModTime(fakeCsn{millis: time.Now().UnixMilli()})
	rs.UpdateSchemas()
	return rs
}

func TestDeleteResourceReturnsOK(t *testing.T) {
	be := &fakeBackend{
		deleteResource: func(dc *base.DeleteContext) error { return nil },
	}
	s, rt := newTestServer(t, be)

	req := httptest.NewRequest(http.MethodDelete, apiBase+rt.Endpoint+"/u1", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "spec.md requires 200 on delete, not 204")
	assert.Empty(t, rec.Body.Bytes())
}

func TestDeleteResourceNotFound(t *testing.T) {
	be := &fakeBackend{
		deleteResource: func(dc *base.DeleteContext) error {
			return base.NewNotFoundError("no such resource")
		},
	}
	s, rt := newTestServer(t, be)

	req := httptest.NewRequest(http.MethodDelete, apiBase+rt.Endpoint+"/missing", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteErrorDoesNotLeakBackendDetail(t *testing.T) {
	be := &fakeBackend{
		getResource: func(gc *base.GetContext) (*base.Resource, error) {
			return nil, errors.New("ldap: dial tcp 10.0.0.5:636: connection refused")
		},
	}
	s, rt := newTestServer(t, be)

	req := httptest.NewRequest(http.MethodGet, apiBase+rt.Endpoint+"/u1", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5", "directory internals must not leak into the response body")
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestCreateResourceDuplicateReturnsConflict(t *testing.T) {
	be := &fakeBackend{
		postResource: func(cc *base.CreateContext) (*base.Resource, error) {
			return nil, base.NewConflictError("a User resource already exists with the same unique attribute value")
		},
	}
	s, rt := newTestServer(t, be)

	body := `{"userName":"jdoe","displayName":"Jane Doe"}`
	req := httptest.NewRequest(http.MethodPost, apiBase+rt.Endpoint, strings.NewReader(body))
	req.SetBasicAuth("admin", "secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateResourceLocationHeaderCarriesNewId(t *testing.T) {
	be := &fakeBackend{
		postResource: func(cc *base.CreateContext) (*base.Resource, error) {
			rt := cc.InRes.GetType()
			created := newTestUser(t, rt, "abc123", "jdoe")
			return created, nil
		},
	}
	s, rt := newTestServer(t, be)

	body := `{"userName":"jdoe","displayName":"Jane Doe"}`
	req := httptest.NewRequest(http.MethodPost, apiBase+rt.Endpoint, strings.NewReader(body))
	req.SetBasicAuth("admin", "secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasSuffix(loc, rt.Endpoint+"/abc123"), "Location %q should end with %s/abc123", loc, rt.Endpoint)
}

func TestReplaceResourceVersionMismatchReturnsPreconditionFailed(t *testing.T) {
	be := &fakeBackend{
		putResource: func(rc *base.ReplaceContext) (*base.Resource, error) {
			return nil, base.NewPreCondError("version mismatch")
		},
	}
	s, rt := newTestServer(t, be)

	body := `{"userName":"jdoe","displayName":"Jane Doe"}`
	req := httptest.NewRequest(http.MethodPut, apiBase+rt.Endpoint+"/u1", strings.NewReader(body))
	req.SetBasicAuth("admin", "secret")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-None-Match", "stale-version")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestListResourcesUsesResourceURIQueryParsing(t *testing.T) {
	be := &fakeBackend{
		getResources: func(sc *base.SearchContext) (*base.ListResponse, error) {
			assert.Equal(t, "name.familyname", strings.ToLower(sc.SortBy))
			assert.Equal(t, "descending", sc.SortOrder)
			assert.Equal(t, 2, sc.StartIndex)
			return &base.ListResponse{TotalResults: 0}, nil
		},
	}
	s, rt := newTestServer(t, be)

	req := httptest.NewRequest(http.MethodGet, apiBase+rt.Endpoint+"?sortBy=name.familyName&sortOrder=descending&startIndex=2", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
