package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/scimdrift/scimd/base"
	"github.com/scimdrift/scimd/codec"
	"github.com/scimdrift/scimd/schema"
)

// serviceProviderConfig reports the §5 feature set this server
// implements. PATCH is advertised as unsupported since apply semantics
// are parsed but not executed (see patchResource).
type serviceProviderConfig struct {
	Schemas              []string              `json:"schemas"`
	DocumentationURI     string                `json:"documentationUri,omitempty"`
	Patch                spcSupported          `json:"patch"`
	Bulk                 spcBulk               `json:"bulk"`
	Filter               spcFilter             `json:"filter"`
	ChangePassword       spcSupported          `json:"changePassword"`
	Sort                 spcSupported          `json:"sort"`
	Etag                 spcSupported          `json:"etag"`
	AuthenticationSchemes []spcAuthScheme      `json:"authenticationSchemes"`
}

type spcSupported struct {
	Supported bool `json:"supported"`
}

type spcBulk struct {
	Supported      bool `json:"supported"`
	MaxOperations  int  `json:"maxOperations"`
	MaxPayloadSize int  `json:"maxPayloadSize"`
}

type spcFilter struct {
	Supported  bool `json:"supported"`
	MaxResults int  `json:"maxResults"`
}

type spcAuthScheme struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func writeError(w http.ResponseWriter, err error) {
	se, ok := err.(*base.ScimError)
	if !ok {
		log.Errorf("unclassified backend error: %s", err)
		se = base.NewInternalserverError("an internal error occurred while processing the request")
	}
	w.Header().Set("Content-Type", string(codec.JSON))
	w.WriteHeader(se.Code())
	w.Write(se.Serialize())
}

func (s *Server) schemaMap() map[string]*schema.Schema {
	sm := make(map[string]*schema.Schema)
	for _, sc := range s.reg.Schemas() {
		sm[sc.Id] = sc
	}
	return sm
}

func (s *Server) handleServiceProviderConfig(w http.ResponseWriter, r *http.Request) {
	cfg := &serviceProviderConfig{
		Schemas:         []string{"urn:scim:schemas:core:1.0:ServiceProviderConfig"},
		Patch:           spcSupported{Supported: false},
		Bulk:            spcBulk{Supported: false},
		Filter:          spcFilter{Supported: true, MaxResults: s.cfg.MaxCount},
		ChangePassword:  spcSupported{Supported: false},
		Sort:            spcSupported{Supported: true},
		Etag:            spcSupported{Supported: true},
		AuthenticationSchemes: []spcAuthScheme{
			{Type: "httpbasic", Name: "HTTP Basic", Description: "Authentication via the LDAP directory's bind credentials"},
		},
	}
	writeJSON(w, cfg)
}

func (s *Server) handleResourceTypes(w http.ResponseWriter, r *http.Request) {
	if name := mux.Vars(r)["name"]; name != "" {
		rt, ok := s.reg.ResourceTypeByName(name)
		if !ok {
			writeError(w, base.NewNotFoundError("no resource type named "+name))
			return
		}
		writeJSON(w, rt)
		return
	}
	writeJSON(w, s.reg.ResourceTypes())
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	if id := mux.Vars(r)["id"]; id != "" {
		sc, ok := s.reg.Schema(id)
		if !ok {
			writeError(w, base.NewNotFoundError("no schema with id "+id))
			return
		}
		writeJSON(w, sc)
		return
	}
	writeJSON(w, s.reg.Schemas())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", string(codec.JSON))
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warningf("server: failed to encode response: %s", err)
	}
}

// handleCollection returns the GET (search-all) / POST (create) handler
// bound to one resource type's endpoint.
func (s *Server) handleCollection(rt *schema.ResourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.listResources(w, r, rt)
		case http.MethodPost:
			s.createResource(w, r, rt)
		}
	}
}

// handleItem returns the GET/PUT/PATCH/DELETE handler for one resource
// instance, addressed by {id} (with an optional .json/.xml media suffix).
func (s *Server) handleItem(rt *schema.ResourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, suffix := splitMediaSuffix(mux.Vars(r)["id"])

		switch r.Method {
		case http.MethodGet:
			s.getResource(w, r, rt, id, suffix)
		case http.MethodPut:
			s.replaceResource(w, r, rt, id)
		case http.MethodPatch:
			s.patchResource(w, r, rt, id)
		case http.MethodDelete:
			s.deleteResource(w, r, rt, id)
		}
	}
}

func (s *Server) getResource(w http.ResponseWriter, r *http.Request, rt *schema.ResourceType, id, suffix string) {
	gc := &base.GetContext{Rid: id, Rt: rt, OpContext: opContext(r)}
	rs, err := s.backend.GetResource(r.Context(), gc)
	if err != nil {
		writeError(w, err)
		return
	}

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == rs.GetVersion() {
		w.Header().Set("Etag", rs.GetVersion())
		w.WriteHeader(http.StatusNotModified)
		return
	}

	attrParams, include := s.parseAttrParams(r, rt)
	body := rs.FilterAndSerialize(attrParams, include)

	mt := negotiateMediaType(r, suffix)
	if mt == codec.XML {
		var err error
		body, err = codec.ForMediaType(codec.XML).Marshal(rs)
		if err != nil {
			writeError(w, base.NewInternalserverError(err.Error()))
			return
		}
	}

	w.Header().Set("Content-Type", string(mt))
	w.Header().Set("Etag", rs.GetVersion())
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request, rt *schema.ResourceType) {
	defer r.Body.Close()

	mt := negotiateMediaType(r, "")
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, string(codec.XML)) {
		mt = codec.XML
	}

	body, err := readAll(r)
	if err != nil {
		writeError(w, base.NewBadRequestError(err.Error()))
		return
	}

	rs, err := codec.ForMediaType(mt).Unmarshal(body, rt, s.schemaMap())
	if err != nil {
		writeError(w, err)
		return
	}

	cc := &base.CreateContext{InRes: rs, OpContext: opContext(r)}
	created, err := s.backend.PostResource(r.Context(), cc)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := codec.ForMediaType(mt).Marshal(created)
	if err != nil {
		writeError(w, base.NewInternalserverError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", string(mt))
	w.Header().Set("Location", resourceLocation(r, created.GetId()))
	w.Header().Set("Etag", created.GetVersion())
	w.WriteHeader(http.StatusCreated)
	w.Write(out)
}

// resourceLocation renders the URL a newly created resource lives at,
// by parsing the creating request's own URI and appending the assigned
// id (§4.5) - falling back to plain concatenation if the request URI
// doesn't parse, which should never happen for anything mux routed here.
func resourceLocation(r *http.Request, id string) string {
	ru, err := base.ParseResourceURI(r.URL.String())
	if err != nil {
		return r.URL.String() + "/" + id
	}
	// a collection URI has no id segment: what parsed as the resource ID
	// is the endpoint, and what parsed as the endpoint belongs to the base
	if ru.ResourceID != "" {
		ru.BaseURI += ru.Endpoint
		ru.Endpoint = "/" + ru.ResourceID
	}
	ru.ResourceID = id
	ru.Filter = ""
	ru.Attributes = ""
	ru.ExcludedAttributes = ""
	ru.SortBy = ""
	ru.SortOrder = ""
	ru.HasStartIndex = false
	ru.HasCount = false
	return ru.String()
}

func (s *Server) replaceResource(w http.ResponseWriter, r *http.Request, rt *schema.ResourceType, id string) {
	defer r.Body.Close()

	mt := negotiateMediaType(r, "")
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, string(codec.XML)) {
		mt = codec.XML
	}

	body, err := readAll(r)
	if err != nil {
		writeError(w, base.NewBadRequestError(err.Error()))
		return
	}

	rs, err := codec.ForMediaType(mt).Unmarshal(body, rt, s.schemaMap())
	if err != nil {
		writeError(w, err)
		return
	}
	rs.SetId(id)

	rc := &base.ReplaceContext{InRes: rs, Rt: rt, IfNoneMatch: r.Header.Get("If-None-Match"), OpContext: opContext(r)}
	replaced, err := s.backend.PutResource(r.Context(), rc)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := codec.ForMediaType(mt).Marshal(replaced)
	if err != nil {
		writeError(w, base.NewInternalserverError(err.Error()))
		return
	}

	w.Header().Set("Content-Type", string(mt))
	w.Header().Set("Etag", replaced.GetVersion())
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// patchResource validates a PATCH request's wire representation but does
// not apply it: no Backend method computes or persists the result of a
// patch operation sequence, only base.ParsePatchReq's parse of the body.
func (s *Server) patchResource(w http.ResponseWriter, r *http.Request, rt *schema.ResourceType, id string) {
	defer r.Body.Close()

	pr, err := base.ParsePatchReq(r.Body, rt)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Debugf("server: parsed %d patch operations for %s %s, apply is unimplemented", len(pr.Operations), rt.Name, id)

	writeError(w, base.NewNotImplementedError("PATCH is parsed but not applied by this server"))
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request, rt *schema.ResourceType, id string) {
	dc := &base.DeleteContext{Rid: id, Rt: rt, OpContext: opContext(r)}
	if err := s.backend.DeleteResource(r.Context(), dc); err != nil {
		writeError(w, err)
		return
	}
	// spec.md §4.7/§8 scenario 4 requires 200 on delete, not the more
	// conventional 204 - there's nothing to return, so no body is written.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request, rt *schema.ResourceType) {
	ru, err := base.ParseResourceURI(r.URL.String())
	if err != nil {
		writeError(w, err)
		return
	}

	filterParam := ru.Filter
	if filterParam == "" {
		filterParam = "meta.resourceType eq " + rt.Name
	}

	startIndexStr, countStr := "", ""
	if ru.HasStartIndex {
		startIndexStr = strconv.Itoa(ru.StartIndex)
	}
	if ru.HasCount {
		countStr = strconv.Itoa(ru.Count)
	}

	s.search(w, r, filterParam, ru.Attributes, ru.ExcludedAttributes,
		ru.SortBy, ru.SortOrder, startIndexStr, countStr, rt)
}

func (s *Server) handleGlobalSearch(w http.ResponseWriter, r *http.Request) {
	s.handleSearchRequestBody(w, r, s.reg.ResourceTypes()...)
}

func (s *Server) handleResourceTypeSearch(rt *schema.ResourceType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.handleSearchRequestBody(w, r, rt)
	}
}

func (s *Server) handleSearchRequestBody(w http.ResponseWriter, r *http.Request, rTypes ...*schema.ResourceType) {
	defer r.Body.Close()

	var sr base.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&sr); err != nil {
		writeError(w, base.NewBadRequestError("invalid search request: "+err.Error()))
		return
	}

	filterParam := strings.TrimSpace(sr.Filter)
	if filterParam == "" {
		if len(rTypes) == 1 {
			filterParam = "meta.resourceType eq " + rTypes[0].Name
		} else {
			writeError(w, base.NewBadRequestError("missing 'filter' parameter"))
			return
		}
	}

	s.search(w, r, filterParam, sr.Attributes, sr.ExcludedAttributes,
		sr.SortBy, sr.SortOrder, strconv.Itoa(sr.StartIndex), strconv.Itoa(sr.Count), rTypes...)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, filterParam, attrs, exclAttrs, sortBy, sortOrder, startIndexStr, countStr string, rTypes ...*schema.ResourceType) {
	if attrs != "" && exclAttrs != "" {
		writeError(w, base.NewBadRequestError("the 'attributes' and 'excludedAttributes' parameters cannot both be set"))
		return
	}

	filter, err := base.ParseFilter(filterParam)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := base.FixSchemaUris(filter, rTypes); err != nil {
		writeError(w, base.NewBadRequestError(err.Error()))
		return
	}
	if err := base.ResolveAtTypes(filter, rTypes[0]); err != nil {
		writeError(w, base.NewBadRequestError(err.Error()))
		return
	}

	startIndex, _ := strconv.Atoi(startIndexStr)
	count, _ := strconv.Atoi(countStr)

	sc := &base.SearchContext{
		Filter:     filter,
		ResTypes:   rTypes,
		SortBy:     sortBy,
		SortOrder:  sortOrder,
		StartIndex: startIndex,
		Count:      clampCount(count, s.cfg.DefaultCount, s.cfg.MaxCount),
		OpContext:  opContext(r),
	}
	if sc.StartIndex < 1 {
		sc.StartIndex = 1
	}

	lr, err := s.backend.GetResources(r.Context(), sc)
	if err != nil {
		writeError(w, err)
		return
	}

	attrParams, include := splitAttrs(attrs, exclAttrs, rTypes)

	w.Header().Set("Content-Type", string(codec.JSON))
	w.Write([]byte(`{"schemas":["urn:ietf:params:scim:api:messages:2.0:ListResponse"],"totalResults":` +
		strconv.FormatInt(lr.TotalResults, 10) + `,"startIndex":` + strconv.FormatInt(lr.StartIndex, 10) +
		`,"itemsPerPage":` + strconv.Itoa(lr.ItemsPerPage) + `,"Resources":[`))

	for i, rs := range lr.Resources {
		if i > 0 {
			w.Write([]byte(","))
		}
		w.Write(rs.FilterAndSerialize(attrParams, include))
	}
	w.Write([]byte(`]}`))
}

func clampCount(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

func (s *Server) parseAttrParams(r *http.Request, rt *schema.ResourceType) (map[string]*base.AttributeParam, bool) {
	ru, err := base.ParseResourceURI(r.URL.String())
	if err != nil {
		return nil, true
	}
	return splitAttrs(ru.Attributes, ru.ExcludedAttributes, []*schema.ResourceType{rt})
}

func splitAttrs(attrs, exclAttrs string, rTypes []*schema.ResourceType) (map[string]*base.AttributeParam, bool) {
	if attrs != "" {
		attrSet, subAtPresent := base.SplitAttrCsv(attrs, rTypes)
		return toParamMap(base.ConvertToParamAttributes(attrSet, subAtPresent)), true
	}
	if exclAttrs != "" {
		exclSet, subAtPresent := base.SplitAttrCsv(exclAttrs, rTypes)
		return toParamMap(base.ConvertToParamAttributes(exclSet, subAtPresent)), false
	}
	return nil, true
}

func toParamMap(list []*base.AttributeParam) map[string]*base.AttributeParam {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]*base.AttributeParam, len(list))
	for _, p := range list {
		m[p.Name] = p
	}
	return m
}

func readAll(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}
