package server

import (
	"net/http"
	"strings"

	"github.com/scimdrift/scimd/codec"
)

// negotiateMediaType implements the media-suffix-wins-over-Accept-header
// rule (§6): a ".xml"/".json" suffix on the last path segment overrides
// whatever the Accept header says; absent a suffix, the Accept header is
// consulted and JSON wins when both XML and JSON are acceptable. When
// the Accept header names neither (e.g. "*/*"), a Content-Type naming
// XML but not JSON selects XML; otherwise JSON is used.
func negotiateMediaType(r *http.Request, pathSuffix string) codec.MediaType {
	switch pathSuffix {
	case ".xml":
		return codec.XML
	case ".json":
		return codec.JSON
	}

	accept := r.Header.Get("Accept")
	if strings.Contains(accept, string(codec.JSON)) {
		return codec.JSON
	}
	if strings.Contains(accept, string(codec.XML)) {
		return codec.XML
	}

	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, string(codec.XML)) && !strings.Contains(ct, string(codec.JSON)) {
		return codec.XML
	}

	return codec.JSON
}

// splitMediaSuffix mirrors base.ResourceURI's own suffix stripping so
// the router can negotiate on the same rule the URI model documents.
func splitMediaSuffix(lastSegment string) (rest, suffix string) {
	if strings.HasSuffix(lastSegment, ".json") {
		return strings.TrimSuffix(lastSegment, ".json"), ".json"
	}
	if strings.HasSuffix(lastSegment, ".xml") {
		return strings.TrimSuffix(lastSegment, ".xml"), ".xml"
	}
	return lastSegment, ""
}
