// Package memory provides domain-partitioned agent memory. Content is
// segregated into a business domain, a technical domain and a shared
// domain; every write is classified and every read is confined to the
// caller's domain plus shared. Cross-domain access is rejected, never
// silently redirected.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/swarmgate/swarmgate/core"
)

// Memory domains.
const (
	DomainBusiness  = "business"
	DomainTechnical = "technical"
	DomainShared    = "shared"
)

// ValidDomain reports whether name is a known memory domain.
func ValidDomain(name string) bool {
	return name == DomainBusiness || name == DomainTechnical || name == DomainShared
}

// Entry is a stored memory record.
type Entry struct {
	Domain   string
	Key      string
	Content  string
	Metadata map[string]any
}

// Store is the persistence contract beneath the Gate. Implementations
// must scope every operation to the given domain.
type Store interface {
	// Put inserts or replaces the entry under (domain, key).
	Put(ctx context.Context, entry Entry) error
	// Search returns up to limit entries from the listed domains
	// matching the query, best first.
	Search(ctx context.Context, domains []string, query string, limit int) ([]core.SearchResult, error)
	// Delete removes the entry under (domain, key). Unknown keys are
	// not an error.
	Delete(ctx context.Context, domain, key string) error
}

// Classifier assigns a memory domain to content being written.
type Classifier interface {
	Classify(content string) string
}

// KeywordClassifier assigns domains by keyword match. Content matching
// business vocabulary goes to the business domain, technical vocabulary
// to technical, and anything ambiguous or unmatched to shared.
type KeywordClassifier struct {
	business  []string
	technical []string
}

// NewKeywordClassifier creates a classifier with the default vocabularies.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		business: []string{
			"revenue", "customer", "pricing", "contract", "market",
			"stakeholder", "roadmap", "budget", "sales", "strategy",
			"compliance", "quarter",
		},
		technical: []string{
			"api", "deploy", "latency", "database", "schema", "bug",
			"refactor", "endpoint", "infrastructure", "migration",
			"stack trace", "commit", "dependency",
		},
	}
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(content string) string {
	lower := strings.ToLower(content)
	business := countMatches(lower, c.business)
	technical := countMatches(lower, c.technical)

	switch {
	case business > technical:
		return DomainBusiness
	case technical > business:
		return DomainTechnical
	default:
		return DomainShared
	}
}

func countMatches(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}

// InMemoryStore is a mutex-guarded Store for tests and ephemeral runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry // domain -> key -> entry
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]map[string]Entry)}
}

// Put implements Store.
func (s *InMemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.entries[entry.Domain]
	if !ok {
		byKey = make(map[string]Entry)
		s.entries[entry.Domain] = byKey
	}
	byKey[entry.Key] = entry
	return nil
}

// Search implements Store with case-insensitive substring scoring: an
// entry scores 1.0 on a key match, 0.5 on a content match.
func (s *InMemoryStore) Search(_ context.Context, domains []string, query string, limit int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(query)
	var results []core.SearchResult
	for _, domain := range domains {
		for key, entry := range s.entries[domain] {
			var score float64
			switch {
			case strings.Contains(strings.ToLower(key), lower):
				score = 1.0
			case strings.Contains(strings.ToLower(entry.Content), lower):
				score = 0.5
			default:
				continue
			}
			results = append(results, core.SearchResult{
				Key:      key,
				Content:  entry.Content,
				Score:    score,
				Domain:   domain,
				Metadata: entry.Metadata,
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete implements Store.
func (s *InMemoryStore) Delete(_ context.Context, domain, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byKey, ok := s.entries[domain]; ok {
		delete(byKey, key)
	}
	return nil
}
