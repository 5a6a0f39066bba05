package interop

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------
//
// Every failure the bridge reports is a typed error carrying structured
// data. Guests inspect them through Details and branch on Kind.

// UnboundedArity is the maximum arity reported when a variadic overload
// accepts any number of trailing arguments.
const UnboundedArity = -1

// Detailed is implemented by every bridge error.
type Detailed interface {
	error
	Kind() string
	Details() map[string]any
}

// ArityError reports that no overload accepts the number of arguments.
type ArityError struct {
	Name     string
	Min, Max int
	Actual   int
}

func (e *ArityError) Error() string {
	expected := fmt.Sprintf("%d", e.Min)
	switch {
	case e.Max == UnboundedArity:
		expected += "+"
	case e.Max != e.Min:
		expected = fmt.Sprintf("%d-%d", e.Min, e.Max)
	}
	return fmt.Sprintf("arity mismatch calling %s: expected %s arguments, got %d", e.Name, expected, e.Actual)
}

func (e *ArityError) Kind() string { return "arity" }

func (e *ArityError) Details() map[string]any {
	return map[string]any{"name": e.Name, "min": e.Min, "max": e.Max, "actual": e.Actual}
}

// NoApplicableOverloadError reports that overloads of the right arity exist
// but none accepts the arguments at any tier.
type NoApplicableOverloadError struct {
	Name       string
	Candidates []*MethodDescriptor
	Args       []any
}

func (e *NoApplicableOverloadError) Error() string {
	return fmt.Sprintf("no applicable overload of %s for arguments %s; candidates: %s",
		e.Name, describeArgs(e.Args), signatures(e.Candidates))
}

func (e *NoApplicableOverloadError) Kind() string { return "no-applicable-overload" }

func (e *NoApplicableOverloadError) Details() map[string]any {
	return map[string]any{
		"name":       e.Name,
		"candidates": signatureList(e.Candidates),
		"args":       argStrings(e.Args),
		"argTypes":   argTypeNames(e.Args),
	}
}

// AmbiguousOverloadError reports two or more equally specific overloads.
type AmbiguousOverloadError struct {
	Name       string
	Tied       []*MethodDescriptor
	Candidates []*MethodDescriptor
	Args       []any
	Tier       Tier
}

func (e *AmbiguousOverloadError) Error() string {
	return fmt.Sprintf("ambiguous call to %s with arguments %s at %s tier; tied overloads: %s",
		e.Name, describeArgs(e.Args), e.Tier, signatures(e.Tied))
}

func (e *AmbiguousOverloadError) Kind() string { return "ambiguous-overload" }

func (e *AmbiguousOverloadError) Details() map[string]any {
	return map[string]any{
		"name":       e.Name,
		"tied":       signatureList(e.Tied),
		"candidates": signatureList(e.Candidates),
		"args":       argStrings(e.Args),
		"argTypes":   argTypeNames(e.Args),
		"tier":       e.Tier.String(),
	}
}

// ConversionError reports that a value could not be converted to a host
// type, or a host result could not be handed to the guest.
type ConversionError struct {
	Value  any
	Target *Type
	Reason string
	Cause  error
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("cannot convert %s (%s) to %s", displayShort(e.Value), typeNameOf(e.Value), e.Target)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConversionError) Unwrap() error { return e.Cause }

func (e *ConversionError) Kind() string { return "conversion" }

func (e *ConversionError) Details() map[string]any {
	return map[string]any{
		"value":     displayShort(e.Value),
		"valueType": typeNameOf(e.Value),
		"target":    e.Target.String(),
		"reason":    e.Reason,
	}
}

// UseAfterScopeError reports guest access to a scoped argument after the
// host call that received it returned.
type UseAfterScopeError struct {
	ScopeID   string
	Operation string
}

func (e *UseAfterScopeError) Error() string {
	return fmt.Sprintf("%s on a released scoped value (scope %s): scoped values are only valid for the duration of the host call unless pinned",
		e.Operation, e.ScopeID)
}

func (e *UseAfterScopeError) Kind() string { return "use-after-scope" }

func (e *UseAfterScopeError) Details() map[string]any {
	return map[string]any{"scope": e.ScopeID, "operation": e.Operation}
}

// HostInvocationError wraps a failure raised by the host callable itself:
// a returned error or a recovered panic.
type HostInvocationError struct {
	Method string
	Cause  error
	Panic  any
	Stack  []runtime.Frame
}

func (e *HostInvocationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("host method %s panicked: %v", e.Method, e.Panic)
	}
	return fmt.Sprintf("host method %s failed: %v", e.Method, e.Cause)
}

func (e *HostInvocationError) Unwrap() error { return e.Cause }

func (e *HostInvocationError) Kind() string { return "host-exception" }

func (e *HostInvocationError) Details() map[string]any {
	d := map[string]any{"method": e.Method, "stack": e.StackTrace()}
	if e.Cause != nil {
		d["cause"] = e.Cause.Error()
	}
	if e.Panic != nil {
		d["panic"] = fmt.Sprint(e.Panic)
	}
	return d
}

// StackTrace renders the retained frames, one "function file:line" per entry.
func (e *HostInvocationError) StackTrace() []string {
	out := make([]string, 0, len(e.Stack))
	for _, f := range e.Stack {
		out = append(out, fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
	}
	return out
}

// ResourceExhaustionError reports that nested host calls ran out of room.
type ResourceExhaustionError struct {
	Resource string
	Limit    int
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("resource exhausted: %s (limit %d)", e.Resource, e.Limit)
}

func (e *ResourceExhaustionError) Kind() string { return "resource-exhaustion" }

func (e *ResourceExhaustionError) Details() map[string]any {
	return map[string]any{"resource": e.Resource, "limit": e.Limit}
}

// ErrResourceExhausted is preallocated so reporting exhaustion never needs
// to build a fresh error.
var ErrResourceExhausted = &ResourceExhaustionError{Resource: "host call depth", Limit: DefaultMaxCallDepth}

// UnknownMemberError reports a lookup that found nothing.
type UnknownMemberError struct {
	Type string
	Name string
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("unknown member %q on %s", e.Name, e.Type)
}

func (e *UnknownMemberError) Kind() string { return "unknown-member" }

func (e *UnknownMemberError) Details() map[string]any {
	return map[string]any{"type": e.Type, "name": e.Name}
}

// UnsupportedMessageError reports a protocol operation the receiver does
// not support.
type UnsupportedMessageError struct {
	Receiver string
	Message  string
}

func (e *UnsupportedMessageError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Receiver, e.Message)
}

func (e *UnsupportedMessageError) Kind() string { return "unsupported-message" }

func (e *UnsupportedMessageError) Details() map[string]any {
	return map[string]any{"receiver": e.Receiver, "message": e.Message}
}

// InvalidIndexError reports an out-of-range array or buffer access.
type InvalidIndexError struct {
	Index int64
	Size  int64
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}

func (e *InvalidIndexError) Kind() string { return "invalid-index" }

func (e *InvalidIndexError) Details() map[string]any {
	return map[string]any{"index": e.Index, "size": e.Size}
}

// AdapterError reports a type combination that cannot be implemented from
// the guest side.
type AdapterError struct {
	Types  []string
	Reason string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("cannot implement %s: %s", strings.Join(e.Types, " & "), e.Reason)
}

func (e *AdapterError) Kind() string { return "adapter" }

func (e *AdapterError) Details() map[string]any {
	return map[string]any{"types": e.Types, "reason": e.Reason}
}

// ErrStopIteration ends an iterator.
var ErrStopIteration = errors.New("interop: iteration finished")

// ErrorKind returns the Kind of the first Detailed error in err's chain, or
// "error" for foreign errors.
func ErrorKind(err error) string {
	var d Detailed
	if errors.As(err, &d) {
		return d.Kind()
	}
	return "error"
}

// ErrorDetails returns the structured payload of err as a guest-inspectable
// member map.
func ErrorDetails(err error) map[string]any {
	var d Detailed
	if errors.As(err, &d) {
		out := d.Details()
		out["kind"] = d.Kind()
		out["message"] = err.Error()
		return out
	}
	return map[string]any{"kind": "error", "message": err.Error()}
}

// ---------------------------------------------------------------------------
// Rendering helpers
// ---------------------------------------------------------------------------

func signatures(ms []*MethodDescriptor) string {
	return strings.Join(signatureList(ms), ", ")
}

func signatureList(ms []*MethodDescriptor) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Signature()
	}
	return out
}

func describeArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%s (%s)", displayShort(a), typeNameOf(a))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func argStrings(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = displayShort(a)
	}
	return out
}

func argTypeNames(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = typeNameOf(a)
	}
	return out
}

// typeNameOf names the runtime type of a guest or host value.
func typeNameOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case NullValue:
		return x.String()
	case *HostObject:
		if x.static {
			return "static " + x.class.Name
		}
		return "host " + reflect.TypeOf(x.value).String()
	case *ScopedValue:
		return "scoped " + typeNameOf(x.value)
	case *proxyValue:
		return "proxy " + reflect.TypeOf(x.proxy).String()
	}
	return reflect.TypeOf(v).String()
}
