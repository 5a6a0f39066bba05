// Package guest provides reference guest values for embedders and tests.
//
// Each type implements part of the guest protocol defined in package
// interop: arrays, member-bearing objects, executables, constructors,
// iterables, hashes, temporal values and exceptions. An embedding
// interpreter typically adapts its own value representation instead, but
// these types show the expected behavior and are what the tests drive the
// bridge with.
package guest
