package ldapmap

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/scimdrift/scimd/schema"
)

const ldapGenTimeFormat = "20060102150405.000000Z"

// ToLdapValue renders a single SCIM attribute value as the LDAP-attribute
// text the directory expects, selected by the attribute's SCIM dataType
// (§4.6): string passthrough, boolean -> TRUE/FALSE, datetime -> LDAP
// generalized time, integer/decimal -> decimal text, binary -> base64
// re-encoded as the directory's own base64 (a no-op, since SCIM already
// stores binary as base64).
func ToLdapValue(at *schema.AttrType, v interface{}) (string, error) {
	switch strings.ToLower(at.Type) {
	case "boolean":
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("ldapmap: %s: expected bool, got %T", at.Name, v)
		}
		if b {
			return "TRUE", nil
		}
		return "FALSE", nil

	case "datetime":
		millis, ok := toInt64(v)
		if !ok {
			return "", fmt.Errorf("ldapmap: %s: expected millis int64, got %T", at.Name, v)
		}
		return time.UnixMilli(millis).UTC().Format(ldapGenTimeFormat), nil

	case "integer":
		i, ok := toInt64(v)
		if !ok {
			return "", fmt.Errorf("ldapmap: %s: expected integer, got %T", at.Name, v)
		}
		return strconv.FormatInt(i, 10), nil

	case "decimal":
		f, ok := toFloat64(v)
		if !ok {
			return "", fmt.Errorf("ldapmap: %s: expected decimal, got %T", at.Name, v)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case "binary":
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("ldapmap: %s: expected base64 string, got %T", at.Name, v)
		}
		if _, err := base64.StdEncoding.DecodeString(s); err != nil {
			return "", fmt.Errorf("ldapmap: %s: invalid base64: %w", at.Name, err)
		}
		return s, nil

	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// FromLdapValue parses a raw LDAP attribute string back into a Go value
// for that SCIM dataType: bool for boolean, epoch millis as float64 for
// datetime, float64 for integer and decimal, the raw string otherwise.
func FromLdapValue(at *schema.AttrType, raw string) (interface{}, error) {
	switch strings.ToLower(at.Type) {
	case "boolean":
		return strings.EqualFold(raw, "TRUE"), nil

	case "datetime":
		t, err := time.Parse(ldapGenTimeFormat, raw)
		if err != nil {
			return nil, fmt.Errorf("ldapmap: %s: invalid generalized time %q: %w", at.Name, raw, err)
		}
		return float64(t.UnixNano() / int64(time.Millisecond)), nil

	case "integer", "decimal":
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("ldapmap: %s: invalid number %q: %w", at.Name, raw, err)
		}
		return f, nil

	default:
		return raw, nil
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
