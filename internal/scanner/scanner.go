package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"FilingScanner/internal/domain"
)

// Feed describes a concrete registry feed endpoint provided by config.
type Feed struct {
	Name string
	URL  string
	Type domain.FeedType
}

// Request carries all parameters required to execute a scan.
type Request struct {
	Now     time.Time
	Feed    Feed
	Options map[string]string
}

// Scanner captures a single feed strategy implementation (Atom, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.FilingReference, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered strategies in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
