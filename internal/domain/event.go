// Package domain contains the runtime event model and shared telemetry
// counters for the forwarding pipeline.
package domain

import "time"

// Kind classifies a runtime event into its pipeline family.
type Kind int32

// Event families observed by the agent.
const (
	KindVM Kind = iota
	KindConnection
	KindModuleLoad
	KindLog
	kindCount
)

// Kind string representations
const (
	KindVMStr         = "vm"
	KindConnectionStr = "connection"
	KindModuleLoadStr = "module-load"
	KindLogStr        = "log"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindVM:
		return KindVMStr
	case KindConnection:
		return KindConnectionStr
	case KindModuleLoad:
		return KindModuleLoadStr
	case KindLog:
		return KindLogStr
	default:
		return "unknown"
	}
}

// KindFromString maps a wire name back to a Kind. The second return is
// false for unrecognized names.
func KindFromString(s string) (Kind, bool) {
	switch s {
	case KindVMStr:
		return KindVM, true
	case KindConnectionStr:
		return KindConnection, true
	case KindModuleLoadStr:
		return KindModuleLoad, true
	case KindLogStr:
		return KindLog, true
	default:
		return 0, false
	}
}

// Event is one runtime observation handed to the forwarding pipeline.
// Fields carries the family-specific attributes already flattened to
// strings; encoding to the wire schema happens in the submit layer.
type Event struct {
	ID     string
	Kind   Kind
	At     time.Time
	Fields map[string]string
}
