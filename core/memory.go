package core

import "context"

// SearchResult is one retrieved memory entry with a relevance score and
// arbitrary metadata.
type SearchResult struct {
	Key      string
	Content  string
	Score    float64
	Domain   string
	Metadata map[string]any
}

// MemoryScope is the single-domain memory handle an agent is constructed
// with. Every call carries the scope's domain implicitly, so an agent
// physically cannot address another domain's store through its own handle.
// Reads also cover shared-domain entries; writes are always single-domain.
type MemoryScope interface {
	// Domain returns the domain this scope is bound to.
	Domain() string

	// Write stores content under key in the scope's domain. The gate rejects
	// content that classifies into a different domain.
	Write(ctx context.Context, key, content string) error

	// Read searches the scope's domain plus shared entries. The scope never
	// widens to another private domain.
	Read(ctx context.Context, query string, limit int) ([]SearchResult, error)
}
