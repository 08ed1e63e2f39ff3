package base

// DebugType classifies a log statement for operator grep-ability, mirroring
// the UnboundID SCIM SDK's DebugType enum. It never appears on the wire.
type DebugType string

const (
	DebugException  DebugType = "exception"
	DebugCodingErr  DebugType = "coding-error"
	DebugOther      DebugType = "other"
)

func (d DebugType) String() string {
	return string(d)
}
