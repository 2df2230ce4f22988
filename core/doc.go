// Package core holds the shared primitives of swarmgate: the error taxonomy
// surfaced to callers, the normalized response envelope, dispatch request
// values, correlation identifiers and the narrow interfaces (MemoryScope,
// ToolContext) that higher layers depend on without importing each other.
//
// Concrete implementations live elsewhere (memory for stores and the domain
// gate, tool for capabilities, router for model routing); core only defines
// the contracts between them.
package core
