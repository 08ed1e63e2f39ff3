// Package ldapbackend implements base.Backend against an LDAP directory,
// driven by one ldapmap.EntryTemplate per resource type (§4.6, §4.8).
package ldapbackend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/cenkalti/backoff/v4"
	ldap "github.com/go-ldap/ldap/v3"
	logger "github.com/juju/loggo"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/conf"
	"github.com/scimdrift/scimd/ldapmap"
	"github.com/scimdrift/scimd/ldappool"
	"github.com/scimdrift/scimd/schema"
)

var log = logger.GetLogger("scimd.ldapbackend")

// Backend implements base.Backend on top of a pooled LDAP connection and
// one declarative EntryTemplate per resource type name.
type Backend struct {
	pool      *ldappool.Pool
	cfg       conf.LdapConfig
	templates map[string]*ldapmap.EntryTemplate
	csn       *csnGenerator
}

// New builds a Backend. templates is keyed by schema.ResourceType.Name
// (e.g. "User", "Group").
func New(cfg conf.LdapConfig, templates map[string]*ldapmap.EntryTemplate, replicaId uint16) *Backend {
	return &Backend{
		pool:      ldappool.New(cfg),
		cfg:       cfg,
		templates: templates,
		csn:       newCsnGenerator(replicaId),
	}
}

func (b *Backend) templateFor(rt *schema.ResourceType) (*ldapmap.EntryTemplate, error) {
	t, ok := b.templates[rt.Name]
	if !ok {
		return nil, fmt.Errorf("ldapbackend: no mapping template for resource type %s", rt.Name)
	}
	return t, nil
}

// withConn acquires a pooled connection, runs fn, and releases it marking
// it unhealthy if fn reported a network-shaped error, so a broken
// connection is never handed back into the pool for reuse.
func (b *Backend) withConn(ctx context.Context, fn func(*ldap.Conn) error) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return base.NewPeerConnectionFailed(err.Error())
	}

	err = fn(conn)
	b.pool.Release(conn, err == nil || !isNetworkErr(err))
	return err
}

func isNetworkErr(err error) bool {
	var le *ldap.Error
	if errors.As(err, &le) {
		switch le.ResultCode {
		case ldap.ErrorNetwork, ldap.LDAPResultBusy, ldap.LDAPResultUnavailable:
			return true
		}
	}
	return false
}

// isAlreadyExistsErr reports whether err is the directory telling us the
// DN (or a uniqueness=server attribute covered by its own constraint) is
// already taken.
func isAlreadyExistsErr(err error) bool {
	var le *ldap.Error
	if errors.As(err, &le) {
		switch le.ResultCode {
		case ldap.LDAPResultEntryAlreadyExists, ldap.LDAPResultConstraintViolation:
			return true
		}
	}
	return false
}

// retry runs op with exponential backoff, stopping immediately on any
// error op wraps in backoff.Permanent (schema/validation errors), and
// otherwise bounding attempts at cfg.MaxRetries (§7: no retry on logical
// errors, bounded retry on transient ones).
func (b *Backend) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(b.cfg.MaxRetries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isNetworkErr(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func (b *Backend) GetResource(ctx context.Context, gc *base.GetContext) (*base.Resource, error) {
	t, err := b.templateFor(gc.Rt)
	if err != nil {
		return nil, err
	}

	idMapping, ok := t.Mapping("id")
	if !ok {
		return nil, fmt.Errorf("ldapbackend: resource type %s has no id mapping", gc.Rt.Name)
	}

	filter := fmt.Sprintf("(&%s(%s=%s))", objectClassFilter(t), idMapping.LdapAttrName, ldap.EscapeFilter(gc.Rid))

	var rs *base.Resource
	err = b.retry(ctx, func() error {
		return b.withConn(ctx, func(conn *ldap.Conn) error {
			req := ldap.NewSearchRequest(b.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false, filter, nil, nil)
			res, serr := conn.Search(req)
			if serr != nil {
				return serr
			}
			if len(res.Entries) == 0 {
				return base.NewNotFoundError(fmt.Sprintf("no %s resource with id %s", gc.Rt.Name, gc.Rid))
			}
			rs, err = entryToResource(res.Entries[0], gc.Rt, t)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

func (b *Backend) PostResource(ctx context.Context, cc *base.CreateContext) (*base.Resource, error) {
	rt := cc.InRes.GetType()
	t, err := b.templateFor(rt)
	if err != nil {
		return nil, err
	}

	rdnMapping, ok := t.Mapping(t.DnAttrPath())
	if !ok {
		return nil, fmt.Errorf("ldapbackend: resource type %s has no mapping for its DN attribute %s", rt.Name, t.DnAttrPath())
	}
	rdnAt := cc.InRes.GetAttr(t.DnAttrPath())
	if rdnAt == nil || !rdnAt.IsSimple() || len(rdnAt.GetSimpleAt().Values) == 0 {
		return nil, base.NewBadRequestError(fmt.Sprintf("missing required attribute %s", t.DnAttrPath()))
	}
	rdnVal, err := ldapmap.ToLdapValue(rdnMapping.AtType, rdnAt.GetSimpleAt().Values[0])
	if err != nil {
		return nil, base.NewBadRequestError(err.Error())
	}
	dn := t.BuildDN(rdnVal, b.cfg.BaseDN)

	attrs, err := resourceToLdapAttrs(cc.InRes, t)
	if err != nil {
		return nil, base.NewBadRequestError(err.Error())
	}

	var created *base.Resource
	err = b.retry(ctx, func() error {
		return b.withConn(ctx, func(conn *ldap.Conn) error {
			addReq := ldap.NewAddRequest(dn, nil)
			addReq.Attribute("objectClass", t.ObjectClasses)
			for name, vals := range attrs {
				addReq.Attribute(name, vals)
			}
			if err := conn.Add(addReq); err != nil {
				if isAlreadyExistsErr(err) {
					return base.NewConflictError(fmt.Sprintf("a %s resource already exists with the same unique attribute value", rt.Name))
				}
				return err
			}

			searchReq := ldap.NewSearchRequest(dn, ldap.ScopeBaseObject, ldap.NeverDerefAliases, 1, 0, false, objectClassFilter(t), nil, nil)
			res, serr := conn.Search(searchReq)
			if serr != nil {
				return serr
			}
			if len(res.Entries) == 0 {
				return fmt.Errorf("ldapbackend: entry %s disappeared right after creation", dn)
			}

			created, err = entryToResource(res.Entries[0], rt, t)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	created.AddMeta()
	created.UpdateLastModTime(b.csn.NewCsn())
	created.UpdateSchemas()
	return created, nil
}

func (b *Backend) PutResource(ctx context.Context, rc *base.ReplaceContext) (*base.Resource, error) {
	rt := rc.Rt
	t, err := b.templateFor(rt)
	if err != nil {
		return nil, err
	}

	existing, err := b.GetResource(ctx, &base.GetContext{Rid: rc.InRes.GetId(), Rt: rt, OpContext: rc.OpContext})
	if err != nil {
		return nil, err
	}

	if rc.IfNoneMatch != "" && rc.IfNoneMatch != existing.GetVersion() {
		return nil, base.NewPreCondError(fmt.Sprintf("version mismatch: %s is no longer at version %s", rc.InRes.GetId(), rc.IfNoneMatch))
	}

	idMapping, _ := t.Mapping("id")
	filter := fmt.Sprintf("(&%s(%s=%s))", objectClassFilter(t), idMapping.LdapAttrName, ldap.EscapeFilter(rc.InRes.GetId()))

	attrs, err := resourceToLdapAttrs(rc.InRes, t)
	if err != nil {
		return nil, base.NewBadRequestError(err.Error())
	}

	var dn string
	err = b.retry(ctx, func() error {
		return b.withConn(ctx, func(conn *ldap.Conn) error {
			searchReq := ldap.NewSearchRequest(b.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false, filter, nil, nil)
			res, serr := conn.Search(searchReq)
			if serr != nil {
				return serr
			}
			if len(res.Entries) == 0 {
				return base.NewNotFoundError(fmt.Sprintf("no %s resource with id %s", rt.Name, rc.InRes.GetId()))
			}
			dn = res.Entries[0].DN

			modReq := ldap.NewModifyRequest(dn, nil)
			for name, vals := range attrs {
				modReq.Replace(name, vals)
			}
			return conn.Modify(modReq)
		})
	})
	if err != nil {
		return nil, err
	}

	replaced, err := b.GetResource(ctx, &base.GetContext{Rid: existing.GetId(), Rt: rt, OpContext: rc.OpContext})
	if err != nil {
		return nil, err
	}
	replaced.UpdateLastModTime(b.csn.NewCsn())
	return replaced, nil
}

func (b *Backend) DeleteResource(ctx context.Context, dc *base.DeleteContext) error {
	t, err := b.templateFor(dc.Rt)
	if err != nil {
		return err
	}

	idMapping, _ := t.Mapping("id")
	filter := fmt.Sprintf("(&%s(%s=%s))", objectClassFilter(t), idMapping.LdapAttrName, ldap.EscapeFilter(dc.Rid))

	return b.retry(ctx, func() error {
		return b.withConn(ctx, func(conn *ldap.Conn) error {
			searchReq := ldap.NewSearchRequest(b.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false, filter, nil, nil)
			res, serr := conn.Search(searchReq)
			if serr != nil {
				return serr
			}
			if len(res.Entries) == 0 {
				return base.NewNotFoundError(fmt.Sprintf("no %s resource with id %s", dc.Rt.Name, dc.Rid))
			}
			return conn.Del(ldap.NewDelRequest(res.Entries[0].DN, nil))
		})
	})
}

// GetResources runs a search for the single resource type named in
// sc.ResTypes (a context naming any other number of resource types is
// rejected with an error), translating sc.Filter to an LDAP filter via ldapmap and
// paging through the Simple Paged Results control. Sorting is pushed to
// the directory's server-side sort control when AssumeSortCtrl is set;
// otherwise a capped candidate set is fetched and sorted in memory, per
// §4.6 and the §9 open question on MaxSortCandidates.
func (b *Backend) GetResources(ctx context.Context, sc *base.SearchContext) (*base.ListResponse, error) {
	if len(sc.ResTypes) != 1 {
		return nil, fmt.Errorf("ldapbackend: GetResources requires exactly one resource type per mapping template")
	}
	rt := sc.ResTypes[0]
	t, err := b.templateFor(rt)
	if err != nil {
		return nil, err
	}

	ldapFilter := objectClassFilter(t)
	if sc.Filter != nil {
		translated, terr := ldapmap.Translate(sc.Filter, t)
		if terr != nil {
			return nil, base.NewBadRequestError(terr.Error())
		}
		ldapFilter = fmt.Sprintf("(&%s%s)", ldapFilter, translated)
	}

	needsMemSort := sc.SortBy != "" && !b.cfg.AssumeSortCtrl
	limit := sc.StartIndex + sc.Count
	if needsMemSort || limit <= 0 {
		limit = b.cfg.MaxSortCandidates
	}
	if limit > b.cfg.MaxSortCandidates {
		log.Warningf("ldapbackend: capping candidate set at %d (requested %d)", b.cfg.MaxSortCandidates, limit)
		limit = b.cfg.MaxSortCandidates
	}

	var entries []*ldap.Entry
	err = b.retry(ctx, func() error {
		return b.withConn(ctx, func(conn *ldap.Conn) error {
			controls := []ldap.Control{}
			if sc.SortBy != "" && b.cfg.AssumeSortCtrl {
				if m, ok := t.Mapping(sc.SortBy); ok {
					reverse := sc.SortOrder == "descending"
					sortKey := &ldap.SortKey{AttributeType: m.LdapAttrName, Reverse: reverse}
					controls = append(controls, ldap.NewControlServerSideSortingWithSortKeys([]*ldap.SortKey{sortKey}))
				}
			}

			pageSize := uint32(limit)
			if pageSize == 0 || pageSize > 1000 {
				pageSize = 1000
			}
			pagingCtl := ldap.NewControlPaging(pageSize)
			controls = append(controls, pagingCtl)

			for {
				req := &ldap.SearchRequest{
					BaseDN:     b.cfg.BaseDN,
					Scope:      ldap.ScopeWholeSubtree,
					Filter:     ldapFilter,
					Controls:   controls,
					SizeLimit:  0,
					TimeLimit:  0,
				}
				res, serr := conn.Search(req)
				if serr != nil {
					return serr
				}
				entries = append(entries, res.Entries...)
				if len(entries) >= limit {
					break
				}

				next := ldap.FindControl(res.Controls, ldap.ControlTypePaging)
				if next == nil {
					break
				}
				nextPaging, ok := next.(*ldap.ControlPaging)
				if !ok || len(nextPaging.Cookie) == 0 {
					break
				}
				pagingCtl.SetCookie(nextPaging.Cookie)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}

	resources := make([]*base.Resource, 0, len(entries))
	for _, e := range entries {
		rs, cerr := entryToResource(e, rt, t)
		if cerr != nil {
			log.Warningf("ldapbackend: skipping entry %s: %s", e.DN, cerr)
			continue
		}
		resources = append(resources, rs)
	}

	if needsMemSort {
		sortInMemory(resources, sc.SortBy, sc.SortOrder)
	}

	start := sc.StartIndex - 1
	if start < 0 {
		start = 0
	}
	end := start + sc.Count
	if end > len(resources) {
		end = len(resources)
	}
	if start > len(resources) {
		start = len(resources)
	}

	return &base.ListResponse{
		TotalResults: int64(len(resources)),
		Resources:    resources[start:end],
		StartIndex:   int64(sc.StartIndex),
		ItemsPerPage: end - start,
	}, nil
}

func sortInMemory(resources []*base.Resource, sortBy, sortOrder string) {
	sort.SliceStable(resources, func(i, j int) bool {
		ai := resources[i].GetAttr(sortBy)
		aj := resources[j].GetAttr(sortBy)
		var vi, vj string
		if ai != nil && ai.IsSimple() && len(ai.GetSimpleAt().Values) > 0 {
			vi = fmt.Sprintf("%v", ai.GetSimpleAt().Values[0])
		}
		if aj != nil && aj.IsSimple() && len(aj.GetSimpleAt().Values) > 0 {
			vj = fmt.Sprintf("%v", aj.GetSimpleAt().Values[0])
		}
		if sortOrder == "descending" {
			return vi > vj
		}
		return vi < vj
	})
}

func (b *Backend) Authenticate(ctx context.Context, ar *base.AuthRequest) error {
	var authErr error
	err := b.withConn(ctx, func(conn *ldap.Conn) error {
		// Authenticating a user binds on a throwaway connection and never
		// hands a user-bound conn back to the pool.
		userConn, derr := ldap.DialURL(b.cfg.URL)
		if derr != nil {
			return derr
		}
		defer userConn.Close()

		searchReq := ldap.NewSearchRequest(b.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
			fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(ar.Username)), nil, nil)
		res, serr := conn.Search(searchReq)
		if serr != nil {
			return serr
		}
		if len(res.Entries) == 0 {
			authErr = base.NewUnAuthorizedError("invalid credentials")
			return nil
		}

		if berr := userConn.Bind(res.Entries[0].DN, ar.Password); berr != nil {
			authErr = base.NewUnAuthorizedError("invalid credentials")
			return nil
		}
		return nil
	})
	if err != nil {
		return err
	}
	return authErr
}

func objectClassFilter(t *ldapmap.EntryTemplate) string {
	if len(t.ObjectClasses) == 0 {
		return "(objectClass=*)"
	}
	f := ""
	for _, oc := range t.ObjectClasses {
		f += fmt.Sprintf("(objectClass=%s)", ldap.EscapeFilter(oc))
	}
	if len(t.ObjectClasses) == 1 {
		return f
	}
	return "(&" + f + ")"
}

// Close releases pooled connections; the server calls this on shutdown.
func (b *Backend) Close() {
	b.pool.Close()
}

var _ base.Backend = (*Backend)(nil)
