package base

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	logger "github.com/juju/loggo"

	"github.com/scimdrift/scimd/schema"
)

var filterLog = logger.GetLogger("scimd.base.filter")

const (
	readAttrOrNot = iota
	readOp
	readVal
)

var opMap = map[string]int{
	"EQ": 0, "NE": 1, "CO": 2, "SW": 3, "EW": 4,
	"GT": 5, "LT": 6, "GE": 7, "LE": 8, "PR": 9,
	"NOT": 10, "OR": 11, "AND": 12,
}

// FilterNode is one node of a parsed SCIM filter expression tree: either
// a logical node (AND/OR/NOT) with children, or a leaf comparison
// (attribute Op Value).
type FilterNode struct {
	Op      string
	Name    string
	ResType *schema.ResourceType
	atType  *schema.AttrType

	Value     string
	NormValue interface{}
	Children  []*FilterNode

	// Count estimates how many entries this node might match; used to
	// order AND/OR children for short-circuit evaluation.
	Count int64
}

type position struct {
	index      int
	tokenStart int
	state      int
	parenCount int
}

// ParseFilter parses a SCIM filter expression per RFC 7644 §3.4.2.2,
// returning a *ScimError with ScimType ST_INVALIDFILTER on malformed
// input. Parse-time panics raised by readToken/parse are recovered here
// and converted, matching the teacher's recover-at-the-boundary style.
func ParseFilter(filter string) (expr *FilterNode, err error) {
	filterLog.Debugf("parsing filter %q", filter)
	pos := &position{}

	defer func() {
		if r := recover(); r != nil {
			var detail string
			if e, ok := r.(error); ok {
				detail = e.Error()
			} else {
				detail = fmt.Sprintf("%v", r)
			}
			se := NewBadRequestError(detail)
			se.ScimType = ST_INVALIDFILTER
			err = se
			expr = nil
		}
	}()

	filter = strings.TrimSpace(filter)
	if len(filter) == 0 {
		se := NewBadRequestError("empty filter")
		se.ScimType = ST_INVALIDFILTER
		return nil, se
	}

	xpr := parseFilterExpr([]rune(filter), pos)

	if pos.parenCount != 0 {
		se := NewBadRequestError("invalid filter: parentheses mismatch")
		se.ScimType = ST_INVALIDFILTER
		return nil, se
	}

	numCh := len(xpr.Children)
	switch {
	case isLogical(xpr.Op) && numCh != 2:
		se := NewBadRequestError(fmt.Sprintf("invalid filter: wrong number of operands %d for %s", numCh, xpr.Op))
		se.ScimType = ST_INVALIDFILTER
		return nil, se
	case xpr.Op == "NOT" && numCh != 1:
		se := NewBadRequestError(fmt.Sprintf("invalid filter: wrong number of operands %d for NOT", numCh))
		se.ScimType = ST_INVALIDFILTER
		return nil, se
	case xpr.Op == "":
		se := NewBadRequestError("invalid filter")
		se.ScimType = ST_INVALIDFILTER
		return nil, se
	}

	return xpr, nil
}

func parseFilterExpr(rb []rune, pos *position) *FilterNode {
	length := len(rb)

	var node *FilterNode
	var root *FilterNode

	complexAtBegin := false
	var parentAt string

outer:
	for {
		c := rb[pos.index]
		switch c {
		default:
			t, err := readToken(rb, pos.index, pos)
			if err != nil {
				panic(err)
			}

			switch pos.state {
			case readAttrOrNot:
				if strings.EqualFold(t, "NOT") {
					tmp := &FilterNode{Op: "NOT", Count: -1}
					var tmpRoot *FilterNode

					if root == nil {
						root = node
					}
					if root != nil {
						if !isLogical(root.Op) {
							panic(fmt.Errorf("NOT cannot be added to a non-logical node"))
						}
						root.addChild(tmp)
						tmpRoot = root
					}

					pos.index++
					child := parseFilterExpr(rb, pos)
					tmp.addChild(child)

					if tmpRoot == nil {
						tmpRoot = tmp
					}
					root = tmpRoot
				} else {
					t = strings.ToLower(t)

					// valuePath = attrPath "[" valFilter "]"
					bracket := strings.IndexRune(t, '[')
					if bracket > 0 && bracket < len(t)-1 {
						if complexAtBegin {
							panic(fmt.Errorf("invalid filter: mismatched [ at position %d", pos.tokenStart))
						}
						complexAtBegin = true
						parentAt = t[:bracket]
						t = parentAt + "." + t[bracket+1:]
					} else if complexAtBegin {
						t = parentAt + "." + t
					}

					node = &FilterNode{Count: -1, Name: t}
					pos.state = readOp
				}

			case readOp:
				op := toOperator(t)

				if isLogical(op) {
					if root == nil {
						root = node
						node = nil
					}
					if root == nil {
						panic(fmt.Errorf("invalid %s node: missing child", op))
					}

					tmp := &FilterNode{Op: op, Count: -1}
					tmp.addChild(root)
					root = tmp
					pos.state = readAttrOrNot
				} else if op == "PR" {
					node.Op = op
					if root != nil && isLogical(root.Op) {
						root.addChild(node)
					}
					pos.state = readOp
				} else if op == "NOT" {
					panic(fmt.Errorf("misplaced NOT"))
				} else {
					node.Op = op
					pos.state = readVal
				}

			case readVal:
				node.Value = stripQuotes(t)
				if root != nil && isLogical(root.Op) {
					root.addChild(node)
				}
				pos.state = readOp
			}

		case ' ':
			// skip

		case '(':
			pos.index++
			pos.parenCount++
			tmp := parseFilterExpr(rb, pos)

			if root != nil && isLogical(root.Op) {
				root.addChild(tmp)
			} else {
				root = tmp
			}

		case ')':
			pos.parenCount--
			break outer

		case ']':
			if !complexAtBegin {
				panic(fmt.Errorf("invalid filter: ] without a matching ["))
			}
			complexAtBegin = false
		}

		pos.index++
		if pos.index >= length {
			if pos.state == readVal {
				panic(fmt.Errorf("invalid filter: missing value at position %d", pos.tokenStart+1))
			}
			break
		}
	}

	if root == nil {
		root = node
	}
	return root
}

func readToken(rb []rune, start int, pos *position) (string, error) {
	var pr rune
	beginAt := start
	startQuote := false
	pos.tokenStart = start

	for ; pos.index < len(rb); pos.index++ {
		c := rb[pos.index]
		switch c {
		case ' ':
			if start == pos.index {
				start++
				pos.tokenStart = start
				pr = c
				continue
			} else if !startQuote {
				pos.index--
				return string(rb[start : pos.index+1]), nil
			}

		case '"':
			if !startQuote {
				startQuote = true
				pr = c
				continue
			}
			if startQuote && pr != '\\' {
				return string(rb[start : pos.index+1]), nil
			}

		case ']':
			if !startQuote {
				return string(rb[start:pos.index]), nil
			}

		case '(', ')':
			if !startQuote {
				t := string(rb[start:pos.index])
				pos.index--
				return t, nil
			}
		}
		pr = c
	}

	if startQuote {
		return "", fmt.Errorf("unterminated quoted string starting at position %d", beginAt)
	}
	return string(rb[start:pos.index]), nil
}

func toOperator(op string) string {
	upper := strings.ToUpper(op)
	if _, ok := opMap[upper]; !ok {
		panic(fmt.Errorf("invalid operator %q", op))
	}
	return upper
}

func isLogical(op string) bool {
	return opMap[op] >= 11
}

func stripQuotes(token string) string {
	if strings.HasPrefix(token, "\"") {
		token = token[1 : len(token)-1]
		token = strings.ReplaceAll(token, "\\\"", "\"")
	}
	return token
}

// GetAtType returns the schema attribute type bound to this node by
// SetAtType, or nil if unbound.
func (fn *FilterNode) GetAtType() *schema.AttrType {
	return fn.atType
}

// SetAtType binds this leaf node to a resolved schema attribute and
// normalizes its textual Value into a typed NormValue for comparison.
func (fn *FilterNode) SetAtType(atType *schema.AttrType) {
	fn.NormValue = nil
	fn.Count = -1
	fn.atType = atType
	fn.normalize()
}

func (fn *FilterNode) normalize() {
	if fn.atType == nil || len(fn.Value) == 0 {
		return
	}

	switch strings.ToLower(fn.atType.Type) {
	case "string", "reference":
		if !fn.atType.CaseExact {
			fn.NormValue = strings.ToLower(fn.Value)
		} else {
			fn.NormValue = fn.Value
		}

	case "integer":
		i, err := strconv.ParseInt(fn.Value, 10, 64)
		if err != nil {
			panic(err)
		}
		fn.NormValue = i

	case "decimal":
		f, err := strconv.ParseFloat(fn.Value, 64)
		if err != nil {
			panic(err)
		}
		fn.NormValue = f

	case "boolean":
		b, err := strconv.ParseBool(fn.Value)
		if err != nil {
			panic(err)
		}
		fn.NormValue = b

	case "datetime":
		t, err := time.Parse(time.RFC3339, fn.Value)
		if err != nil {
			panic(err)
		}
		fn.NormValue = t.UnixNano() / int64(time.Millisecond)
	}
}

// ResolveAtTypes walks a parsed filter tree and binds every leaf's
// attribute descriptor via SetAtType, resolving normalized comparison
// values along the way. Mirrors the resolution buildSelector performs for
// PATCH path selectors, generalized to whichever resource type the
// search is scoped to.
func ResolveAtTypes(node *FilterNode, rt *schema.ResourceType) error {
	switch node.Op {
	case "AND", "OR":
		if err := ResolveAtTypes(node.Children[0], rt); err != nil {
			return err
		}
		return ResolveAtTypes(node.Children[1], rt)

	case "NOT":
		return ResolveAtTypes(node.Children[0], rt)

	default:
		atType, ok := rt.GetAtType(node.Name)
		if !ok {
			return fmt.Errorf("attribute %s in filter is not found in the resource type %s", node.Name, rt.Name)
		}
		node.SetAtType(atType)
		return nil
	}
}

func (fn *FilterNode) isEmpty() bool {
	return len(fn.Name) == 0 || len(fn.Op) == 0
}

func (fn *FilterNode) addChild(child *FilterNode) {
	fn.Children = append(fn.Children, child)
}

func (fn *FilterNode) String() string {
	if fn.Op == "NOT" {
		return fn.Op + " " + fn.Children[0].String()
	}
	if isLogical(fn.Op) {
		return fn.Children[0].String() + " " + fn.Op + " " + fn.Children[1].String()
	}
	return fn.Name + " " + fn.Op + " " + fn.Value
}
