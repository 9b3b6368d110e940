// Package observability provides metrics and logging utilities.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod   = "method"
	attrPath     = "path"
	attrStatus   = "status"
	attrOp       = "op"
	attrTimedOut = "timed_out"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	// Normalize paths with job names to reduce cardinality
	// /v1/jobs/abc123/output -> /v1/jobs/{name}/output
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// Group status codes to reduce cardinality
	// 200-299 -> 2xx, 400-499 -> 4xx, 500-599 -> 5xx
	group := fmt.Sprintf("%dxx", code/100)
	return attribute.String(attrStatus, group)
}

func opAttr(op string) attribute.KeyValue {
	return attribute.String(attrOp, op)
}

func timedOutAttr(timedOut bool) attribute.KeyValue {
	return attribute.Bool(attrTimedOut, timedOut)
}

// normalizePath replaces the job-name path segment with a placeholder.
func normalizePath(path string) string {
	const prefix = "/v1/jobs/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return path
	}
	rest := path[len(prefix):]
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return prefix + "{name}" + rest[idx:]
	}
	return prefix + "{name}"
}
