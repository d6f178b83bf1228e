// Package runner implements the runner host: one fresh WASI sandbox
// per invocation, deny-by-default (no filesystem, no network), enforcing
// config-envelope contract compatibility before any op that has a stored
// envelope runs.
package runner

import (
	"fmt"
	"time"
)

// Per-op and per-hook invocation deadlines: a provider op gets
// DefaultOpTimeout unless InvokeRequest.Timeout overrides it; the ingress
// hook chain passes DefaultHookTimeout explicitly to bound each hook call.
const (
	DefaultOpTimeout   = 30 * time.Second
	DefaultHookTimeout = 5 * time.Second
)

// Outcome is what one provider op invocation returns.
type Outcome struct {
	Success bool
	Output  []byte // the component's structured JSON output, on success
	Raw     []byte // the component's raw stdout, always captured
	Error   *ComponentError
}

// ComponentError is the structured error a component itself reports
// (distinct from the runner's own typed errors below).
type ComponentError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ContractDriftError mirrors envelope.ContractDriftError at the runner
// boundary, carrying both hashes and the component id so the caller can
// report exactly what drifted.
type ContractDriftError struct {
	StoredDescribeHash   string
	ResolvedDescribeHash string
	ComponentID          string
}

func (e *ContractDriftError) Error() string {
	return fmt.Sprintf("runner: OP_CONTRACT_DRIFT for %s: stored=%s resolved=%s",
		e.ComponentID, e.StoredDescribeHash, e.ResolvedDescribeHash)
}

// PackMissingError is returned when the pack archive can no longer be
// opened, or no longer carries the provider's WASM module.
type PackMissingError struct {
	PackPath string
	Detail   string
}

func (e *PackMissingError) Error() string {
	return fmt.Sprintf("runner: pack missing %s: %s", e.PackPath, e.Detail)
}

// OpNotFoundError is returned when the pack manifest does not declare the
// requested provider_component_ref/op_name pair.
type OpNotFoundError struct {
	ProviderComponentRef string
	OpName               string
}

func (e *OpNotFoundError) Error() string {
	return fmt.Sprintf("runner: op not found: %s.%s", e.ProviderComponentRef, e.OpName)
}

// InvocationFailedError wraps a component-reported failure (a non-success
// response, or non-empty stderr output).
type InvocationFailedError struct {
	Detail string
}

func (e *InvocationFailedError) Error() string {
	return "runner: invocation failed: " + e.Detail
}

// IoError wraps an underlying filesystem failure unrelated to pack
// resolution (e.g. reading a stored envelope).
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("runner: io error during %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}
