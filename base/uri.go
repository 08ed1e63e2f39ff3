// Copyright 2017 Keydap. All rights reserved.
// Licensed under the Apache License, Version 2.0, see LICENSE.

package base

import (
	"net/url"
	"strconv"
	"strings"
)

// ResourceURI models the shape of a SCIM resource URI (§4.5):
//
//	<baseURI>/<endpoint>[/<resourceID>][.mediaSuffix][?query]
//
// Parse/String are inverse of each other for every well-formed value
// (§8 testable property 3).
type ResourceURI struct {
	BaseURI     string
	Endpoint    string
	ResourceID  string
	MediaSuffix string // "", ".xml" or ".json"

	Attributes         string
	ExcludedAttributes string
	Filter             string
	SortBy             string
	SortOrder          string
	StartIndex         int
	Count              int
	HasStartIndex      bool
	HasCount           bool
}

// ParseResourceURI parses a raw SCIM URI into its structural parts. A
// path with a single segment is the endpoint; with two or more segments
// the last one is the resource ID and the one before it the endpoint, so
// a collection URI under a base path ("/v1/Users") parses as endpoint
// "/v1" with resource ID "Users". Everything before the endpoint segment
// is preserved verbatim as BaseURI so that String() can reproduce it
// unchanged.
func ParseResourceURI(raw string) (*ResourceURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, NewBadRequestError("malformed URI: " + err.Error())
	}

	ru := &ResourceURI{}

	path := u.Path
	slash := strings.LastIndex(path, "/")
	if slash < 0 {
		se := NewBadRequestError("SCIM URI is missing an endpoint")
		se.ScimType = ST_INVALIDPATH
		return nil, se
	}

	ru.BaseURI = u.Scheme
	if ru.BaseURI != "" {
		ru.BaseURI += "://" + u.Host
	}

	// the path is either /<base.../endpoint[/id] - split off the last one
	// or two segments (endpoint, optionally resourceID) and keep the rest
	// as part of BaseURI.
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		se := NewBadRequestError("SCIM URI is missing an endpoint")
		se.ScimType = ST_INVALIDPATH
		return nil, se
	}

	last := segments[len(segments)-1]
	var prefix []string
	switch len(segments) {
	case 1:
		ru.Endpoint = "/" + segments[0]
	default:
		prefix = segments[:len(segments)-2]
		ru.Endpoint = "/" + segments[len(segments)-2]
		last, ru.MediaSuffix = splitMediaSuffix(last)
		ru.ResourceID = last
	}

	if ru.ResourceID == "" {
		// no id segment consumed above; still need to strip a media
		// suffix off the endpoint segment itself (e.g. "/Users.json")
		ep, suffix := splitMediaSuffix(strings.TrimPrefix(ru.Endpoint, "/"))
		ru.Endpoint = "/" + ep
		ru.MediaSuffix = suffix
	}

	if len(prefix) > 0 {
		ru.BaseURI += "/" + strings.Join(prefix, "/")
	}

	q := u.Query()
	ru.Attributes = q.Get("attributes")
	ru.ExcludedAttributes = q.Get("excludedAttributes")
	ru.Filter = q.Get("filter")
	ru.SortBy = q.Get("sortBy")
	ru.SortOrder = q.Get("sortOrder")

	if v := q.Get("startIndex"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			se := NewBadRequestError("invalid startIndex: " + v)
			se.ScimType = ST_INVALIDPATH
			return nil, se
		}
		ru.StartIndex = n
		ru.HasStartIndex = true
	}

	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			se := NewBadRequestError("invalid count: " + v)
			se.ScimType = ST_INVALIDPATH
			return nil, se
		}
		ru.Count = n
		ru.HasCount = true
	}

	return ru, nil
}

func splitMediaSuffix(segment string) (rest string, suffix string) {
	if strings.HasSuffix(segment, ".json") {
		return strings.TrimSuffix(segment, ".json"), ".json"
	}
	if strings.HasSuffix(segment, ".xml") {
		return strings.TrimSuffix(segment, ".xml"), ".xml"
	}
	return segment, ""
}

// String renders the URI back to its wire form.
func (ru *ResourceURI) String() string {
	var b strings.Builder
	b.WriteString(ru.BaseURI)
	b.WriteString(ru.Endpoint)

	if ru.ResourceID != "" {
		b.WriteByte('/')
		b.WriteString(ru.ResourceID)
	}
	b.WriteString(ru.MediaSuffix)

	q := url.Values{}
	if ru.Attributes != "" {
		q.Set("attributes", ru.Attributes)
	}
	if ru.ExcludedAttributes != "" {
		q.Set("excludedAttributes", ru.ExcludedAttributes)
	}
	if ru.Filter != "" {
		q.Set("filter", ru.Filter)
	}
	if ru.SortBy != "" {
		q.Set("sortBy", ru.SortBy)
	}
	if ru.SortOrder != "" {
		q.Set("sortOrder", ru.SortOrder)
	}
	if ru.HasStartIndex {
		q.Set("startIndex", strconv.Itoa(ru.StartIndex))
	}
	if ru.HasCount {
		q.Set("count", strconv.Itoa(ru.Count))
	}

	if encoded := q.Encode(); encoded != "" {
		b.WriteByte('?')
		b.WriteString(encoded)
	}

	return b.String()
}

// EffectiveStartIndex applies the §4.4 default (1-based, minimum 1).
func (ru *ResourceURI) EffectiveStartIndex() int {
	if !ru.HasStartIndex || ru.StartIndex < 1 {
		return 1
	}
	return ru.StartIndex
}

// EffectiveCount applies the configured server default/max when the
// caller didn't supply one, bounding it at max.
func (ru *ResourceURI) EffectiveCount(defaultCount, maxCount int) int {
	if !ru.HasCount {
		return defaultCount
	}
	if ru.Count < 0 {
		return 0
	}
	if ru.Count > maxCount {
		return maxCount
	}
	return ru.Count
}
