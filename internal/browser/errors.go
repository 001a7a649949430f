package browser

import (
	"context"
	"errors"
	"strings"
)

// Error strings produced by the DevTools protocol for references that went
// stale between a snapshot and the action using it. These call for a fresh
// snapshot and a retry rather than a failed record.
var staleMarkers = []string{
	"cannot find context with specified id",
	"node with given id does not belong to the document",
	"object couldn't be returned by value",
	"session closed",
	"target closed",
	"detached",
	"stale",
}

var transientMarkers = []string{
	"element not found",
	"cannot find element",
	"timeout",
	"navigation failed",
	"429",
	"too many requests",
}

// IsStale reports whether err indicates a stale element or document
// reference. Stale errors are always transient.
func IsStale(err error) bool {
	if err == nil {
		return false
	}
	return matchesAny(err, staleMarkers)
}

// IsTransient reports whether a browser action error is worth retrying.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return IsStale(err) || matchesAny(err, transientMarkers)
}

func matchesAny(err error, markers []string) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
