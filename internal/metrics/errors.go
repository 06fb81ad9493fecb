package metrics

import (
	"errors"
	"fmt"
	"strings"
)

// FailureName returns the bucket a failed task is counted under. An error
// anywhere in the chain that implements FailureKind() string names its own
// bucket; anything else is keyed by its concrete type.
func FailureName(err error) string {
	if err == nil {
		return ""
	}
	var kinded interface{ FailureKind() string }
	if errors.As(err, &kinded) {
		if kind := kinded.FailureKind(); kind != "" {
			return kind
		}
	}
	return typeName(err)
}

func typeName(err error) string {
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	switch name {
	case "errorString", "wrapError", "wrapErrors", "joinError":
		return "error"
	}
	return name
}
