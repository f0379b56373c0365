// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package errs implements the structured error vocabulary romulus uses at
// every layer boundary: a closed set of kinds, each with its own sub-tags
// and contextual fields, so a caller can classify a failure instead of
// string-matching a message.
package errs

import (
	"fmt"
	"strings"
)

// Kind is the top-level classification of a romulus error.
type Kind string

const (
	KindConfig      Kind = "ConfigError"
	KindState       Kind = "StateError"
	KindPlanning    Kind = "PlanningError"
	KindExecution   Kind = "ExecutionError"
	KindHypervisor  Kind = "HypervisorError"
	KindTimeout     Kind = "TimeoutError"
	KindDependency  Kind = "DependencyError"
	KindResource    Kind = "ResourceError"
)

// Error is the single structured error value used across romulus. Context
// is a free-form bag of fields relevant to the failure (path, kind, name,
// command, exit code, ...); formatting includes every non-nil entry.
type Error struct {
	Kind    Kind
	SubTag  string
	Message string
	Context map[string]any

	// Cause, when set, is wrapped so errors.Is/As keep working across
	// the adapter -> executor boundary.
	Cause error

	// Secondary holds a rollback failure attached alongside a primary
	// error (spec.md §7: "rollback failures ... do not replace the
	// primary error").
	Secondary error
}

func New(kind Kind, subTag, message string, context map[string]any) *Error {
	return &Error{Kind: kind, SubTag: subTag, Message: message, Context: context}
}

func Wrap(kind Kind, subTag, message string, cause error, context map[string]any) *Error {
	return &Error{Kind: kind, SubTag: subTag, Message: message, Cause: cause, Context: context}
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s: %s", e.Kind, e.SubTag, e.Message)

	if len(e.Context) > 0 {
		b.WriteString(" (")
		first := true
		for k, v := range e.Context {
			if v == nil {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&b, "%s=%v", k, v)
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause.Error())
	}

	if e.Secondary != nil {
		fmt.Fprintf(&b, " [rollback also failed: %s]", e.Secondary.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSecondary attaches a rollback (or other secondary) failure without
// replacing the primary error, per spec.md §7's propagation policy.
func (e *Error) WithSecondary(secondary error) *Error {
	e.Secondary = secondary
	return e
}

// AsError reports whether err itself is a *Error and returns it; errors
// wrapping a *Error are not searched.
func AsError(err error) (*Error, bool) {
	type asErr interface{ asRomulusError() *Error }
	if ae, ok := err.(asErr); ok {
		return ae.asRomulusError(), true
	}
	if e, ok := err.(*Error); ok {
		return e, true
	}
	return nil, false
}

func (e *Error) asRomulusError() *Error { return e }

// Config error constructors.
func ConfigFileNotFound(path string) *Error {
	return New(KindConfig, "file_not_found", "configuration file not found", map[string]any{"path": path})
}

func ConfigParseFailed(path string, cause error) *Error {
	return Wrap(KindConfig, "parse_failed", "configuration file is structurally malformed", cause, map[string]any{"path": path})
}

func ConfigValidationFailed(detail string, context map[string]any) *Error {
	if context == nil {
		context = map[string]any{}
	}
	context["violation"] = detail
	return New(KindConfig, "validation_failed", "configuration failed schema validation", context)
}

// State error constructors.
func StateDiscoveryFailed(kind string, cause error) *Error {
	return Wrap(KindState, "discovery_failed", "failed to discover current state", cause, map[string]any{"kind": kind})
}

func StateValidationFailed(kind, name, detail string) *Error {
	return New(KindState, "validation_failed", detail, map[string]any{"kind": kind, "name": name})
}

func StateInconsistent(detail string, context map[string]any) *Error {
	return New(KindState, "inconsistent_state", detail, context)
}

// Planning error constructors.
func PlanGenerationFailed(detail string, cause error) *Error {
	return Wrap(KindPlanning, "plan_generation_failed", detail, cause, nil)
}

func PlanDependencyViolation(action, detail string) *Error {
	return New(KindPlanning, "dependency_violation", detail, map[string]any{"action": action})
}

func PlanResourceConflict(kind, nameA, nameB string) *Error {
	return New(KindPlanning, "resource_conflict", "conflicting actions reference the same resource",
		map[string]any{"kind": kind, "name_a": nameA, "name_b": nameB})
}

func PlanValidationFailed(detail string, context map[string]any) *Error {
	return New(KindPlanning, "validation_failed", detail, context)
}

// Execution error constructors.
func ActionFailed(actionKind, name, step string, cause error) *Error {
	return Wrap(KindExecution, "action_failed", "action failed during execution", cause,
		map[string]any{"kind": actionKind, "name": name, "step": step})
}

func ExecutionTimeout(actionKind, name string, cause error) *Error {
	return Wrap(KindExecution, "timeout", "action timed out", cause, map[string]any{"kind": actionKind, "name": name})
}

func RollbackFailed(actionKind, name string, cause error) *Error {
	return Wrap(KindExecution, "rollback_failed", "rollback of a completed action failed", cause,
		map[string]any{"kind": actionKind, "name": name})
}

func PreconditionFailed(actionKind, name, detail string) *Error {
	return New(KindExecution, "precondition_failed", detail, map[string]any{"kind": actionKind, "name": name})
}

func PostconditionFailed(actionKind, name, detail string) *Error {
	return New(KindExecution, "postcondition_failed", detail, map[string]any{"kind": actionKind, "name": name})
}

// Hypervisor error constructors.
func CommandFailed(command string, exitCode int, output string, cause error) *Error {
	return Wrap(KindHypervisor, "command_failed", "hypervisor command failed", cause,
		map[string]any{"command": command, "exit_code": exitCode, "output": output})
}

func HypervisorTimeout(command string, timeoutMS int64) *Error {
	return New(KindHypervisor, "timeout", "hypervisor command exceeded its timeout",
		map[string]any{"command": command, "timeout_ms": timeoutMS})
}

func ConnectionFailed(uri string, cause error) *Error {
	return Wrap(KindHypervisor, "connection_failed", "unable to reach hypervisor", cause, map[string]any{"uri": uri})
}

func ResourceExists(kind, name string) *Error {
	return New(KindHypervisor, "resource_exists", "resource already exists", map[string]any{"kind": kind, "name": name})
}

func ResourceNotFound(kind, name string) *Error {
	return New(KindHypervisor, "resource_not_found", "resource does not exist", map[string]any{"kind": kind, "name": name})
}

// Standalone timeout error (operation-level, not hypervisor-command-level).
func Timeout(operation string, timeoutMS, elapsedMS int64) *Error {
	return New(KindTimeout, "", "operation exceeded its deadline",
		map[string]any{"operation": operation, "timeout_ms": timeoutMS, "elapsed_ms": elapsedMS})
}

// Dependency error constructors.
func MissingDependency(resource, dependency string) *Error {
	return New(KindDependency, "missing_dependency", "referenced dependency does not exist",
		map[string]any{"resource": resource, "dependency": dependency})
}

func CircularDependency(cycle []string) *Error {
	return New(KindDependency, "circular_dependency", "dependency cycle detected", map[string]any{"cycle": cycle})
}

// Resource error constructors.
func ResourceValidationFailed(kind, name, constraint string) *Error {
	return New(KindResource, "validation_failed", "resource failed validation",
		map[string]any{"kind": kind, "name": name, "constraint": constraint})
}

func ResourceConstraintViolated(kind, name, operation, constraint string) *Error {
	return New(KindResource, "constraint_violated", "operation violates a resource constraint",
		map[string]any{"kind": kind, "name": name, "operation": operation, "constraint": constraint})
}

func ResourceBusy(kind, name, operation string) *Error {
	return New(KindResource, "busy", "resource is busy", map[string]any{"kind": kind, "name": name, "operation": operation})
}

func ResourceInsufficient(kind, name, constraint string) *Error {
	return New(KindResource, "insufficient", "insufficient resource", map[string]any{"kind": kind, "name": name, "constraint": constraint})
}
