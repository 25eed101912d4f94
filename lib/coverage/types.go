package coverage

import "fmt"

// Type distinguishes how coverage was collected
type Type string

const (
	// TypeEagerLoading is coverage captured once while the application boots
	TypeEagerLoading Type = "eager_loading"
	// TypeRuntime is coverage sampled while the application serves requests
	TypeRuntime Type = "runtime"
	// TypeMerged is the virtual, read-only fold of all other types
	TypeMerged Type = "merged"

	DefaultType = TypeRuntime
)

// KnownTypes are the types that records are stored under
var KnownTypes = []Type{TypeEagerLoading, TypeRuntime}

func (t Type) String() string {
	return string(t)
}

// Stored reports whether records can be saved under t
func (t Type) Stored() bool {
	for _, known := range KnownTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseType parses a type name. The empty string yields DefaultType.
func ParseType(s string) (Type, error) {
	switch t := Type(s); {
	case s == "":
		return DefaultType, nil
	case t == TypeMerged || t.Stored():
		return t, nil
	case s == "eager":
		return TypeEagerLoading, nil
	default:
		return "", fmt.Errorf("unknown coverage type %q", s)
	}
}
