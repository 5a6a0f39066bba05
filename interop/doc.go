// Package interop lets guest code call into Go as if Go values were native
// guest values.
//
// This package contains:
//   - Semantic host types over reflect.Type and the nine-tier conversion ladder
//   - Overload resolution across registered Go functions and methods
//   - Method, field and class descriptors with signature and mangled lookup
//   - Per-call-site decision caches with guard re-validation
//   - Invocation dispatch with scoped arguments and host error mapping
//   - The guest-facing protocol implemented by wrapped host values
package interop
