package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/swarmgate/swarmgate/core"
	"github.com/swarmgate/swarmgate/logging"
)

// GateOptions configures a Gate.
type GateOptions struct {
	// Classifier assigns a domain on write. Defaults to the keyword
	// classifier.
	Classifier Classifier
	// IOTimeout bounds each store operation so a hung backend cannot
	// stall a caller indefinitely. Defaults to 10s; zero disables it.
	IOTimeout time.Duration
	// Logger receives gate events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Gate enforces domain isolation in front of a Store. Writes are
// classified before they land; a write addressed to a domain that
// disagrees with the classification is rejected. Reads return results
// from the caller's own domain and from shared, never from the other
// exclusive domain.
type Gate struct {
	store Store
	opts  GateOptions
}

// NewGate creates a Gate in front of store.
func NewGate(store Store, optFns ...func(o *GateOptions)) *Gate {
	opts := GateOptions{
		Classifier: NewKeywordClassifier(),
		IOTimeout:  10 * time.Second,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Classifier == nil {
		opts.Classifier = NewKeywordClassifier()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Gate{store: store, opts: opts}
}

// Write stores content in the given exclusive domain. The content is
// classified first: if the classifier places it in the other exclusive
// domain, the write fails with *core.DomainViolationError. Content
// classified as shared may be written to either exclusive domain.
// Writing to shared is refused here; only the explicit WriteShared path
// reaches the shared domain.
func (g *Gate) Write(ctx context.Context, domain, key, content string) error {
	if !ValidDomain(domain) {
		return fmt.Errorf("memory: unknown domain %q", domain)
	}
	if domain == DomainShared {
		g.opts.Logger.Warn("memory.write.rejected", "domain", domain, "key", key, "reason", "shared requires WriteShared")
		return fmt.Errorf("memory: ordinary writes are single-domain; use WriteShared for the shared domain")
	}

	classified := g.opts.Classifier.Classify(content)
	if classified != DomainShared && classified != domain {
		g.opts.Logger.Warn("memory.write.rejected", "domain", domain, "classified", classified, "key", key)
		return &core.DomainViolationError{Domain: domain, Classified: classified, Key: key}
	}

	g.opts.Logger.Debug("memory.write", "domain", domain, "key", key)
	ctx, cancel := g.ioContext(ctx)
	defer cancel()
	return g.store.Put(ctx, Entry{Domain: domain, Key: key, Content: content})
}

// WriteShared stores content in the shared domain, bypassing
// classification. Shared is readable from every domain; this is the
// only path that writes to it.
func (g *Gate) WriteShared(ctx context.Context, key, content string) error {
	g.opts.Logger.Debug("memory.write", "domain", DomainShared, "key", key)
	ctx, cancel := g.ioContext(ctx)
	defer cancel()
	return g.store.Put(ctx, Entry{Domain: DomainShared, Key: key, Content: content})
}

// Read searches the given domain plus shared. Reading as shared
// searches shared only. Results from the other exclusive domain are
// never returned.
func (g *Gate) Read(ctx context.Context, domain, query string, limit int) ([]core.SearchResult, error) {
	if !ValidDomain(domain) {
		return nil, fmt.Errorf("memory: unknown domain %q", domain)
	}

	domains := []string{DomainShared}
	if domain != DomainShared {
		domains = []string{domain, DomainShared}
	}
	ctx, cancel := g.ioContext(ctx)
	defer cancel()
	return g.store.Search(ctx, domains, query, limit)
}

// ioContext caps a store operation at IOTimeout so no gate call can
// wait unbounded on the backend.
func (g *Gate) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opts.IOTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.opts.IOTimeout)
}

// Scope returns a core.MemoryScope confined to the given domain. All
// agent and tool access goes through scopes so a caller can never name
// a domain other than its own.
func (g *Gate) Scope(domain string) (core.MemoryScope, error) {
	if !ValidDomain(domain) {
		return nil, fmt.Errorf("memory: unknown domain %q", domain)
	}
	return &scope{gate: g, domain: domain}, nil
}

type scope struct {
	gate   *Gate
	domain string
}

func (s *scope) Domain() string { return s.domain }

func (s *scope) Write(ctx context.Context, key, content string) error {
	return s.gate.Write(ctx, s.domain, key, content)
}

func (s *scope) Read(ctx context.Context, query string, limit int) ([]core.SearchResult, error) {
	return s.gate.Read(ctx, s.domain, query, limit)
}
