package parser

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"FilingScanner/internal/config"
	"FilingScanner/internal/domain"
	"FilingScanner/internal/ports"
	"FilingScanner/internal/scanner"
)

// StrategySource implements FilingSource via registered scanner strategies.
type StrategySource struct {
	registry    *scanner.Registry
	feeds       []config.FeedConfig
	freshness   time.Duration
	maxPerCycle int
	logger      *slog.Logger
}

var _ ports.FilingSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined feeds.
func NewStrategySource(reg *scanner.Registry, feeds []config.FeedConfig, poller config.PollerConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:    reg,
		feeds:       feeds,
		freshness:   poller.Freshness,
		maxPerCycle: poller.MaxPerCycle,
		logger:      log,
	}
}

// Poll runs every configured feed and returns fresh references, newest
// first, capped per cycle. A failing feed is logged and contributes nothing.
func (s *StrategySource) Poll(ctx context.Context, now time.Time) []domain.FilingReference {
	if s.registry == nil {
		s.warn("scanner registry is not configured")
		return nil
	}

	s.debug("poll feeds", "feeds", len(s.feeds), "now", now.Format(time.RFC3339))

	var (
		aggregated []domain.FilingReference
		seenKeys   = map[domain.DedupKey]struct{}{}
		seenDocs   = map[string]struct{}{}
	)
	for _, feed := range s.feeds {
		strategy, err := s.registry.Resolve(feed.Scanner)
		if err != nil {
			s.warn("feed skipped", "feed", feed.Name, "error", err)
			continue
		}

		req := scanner.Request{
			Now:     now,
			Options: feed.Options,
			Feed: scanner.Feed{
				Name: feed.Name,
				URL:  feed.URL,
				Type: domain.FeedType(feed.Type),
			},
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			s.warn("scan feed failed", "feed", feed.Name, "error", err)
			continue
		}

		fresh := 0
		for _, ref := range results {
			if !s.isFresh(ref, now) {
				continue
			}
			if _, ok := seenKeys[ref.Key()]; ok {
				continue
			}
			// the same filing is listed once per filer role
			if _, ok := seenDocs[ref.DocumentURL]; ok {
				continue
			}
			seenKeys[ref.Key()] = struct{}{}
			seenDocs[ref.DocumentURL] = struct{}{}
			aggregated = append(aggregated, ref)
			fresh++
		}
		s.debug("feed produced filings", "feed", feed.Name, "entries", len(results), "fresh", fresh)
	}

	sort.SliceStable(aggregated, func(i, j int) bool {
		return aggregated[i].PublishedAt.After(aggregated[j].PublishedAt)
	})
	if s.maxPerCycle > 0 && len(aggregated) > s.maxPerCycle {
		aggregated = aggregated[:s.maxPerCycle]
	}

	s.debug("strategy source done", "total_filings", len(aggregated))
	return aggregated
}

func (s *StrategySource) isFresh(ref domain.FilingReference, now time.Time) bool {
	if s.freshness <= 0 {
		return true
	}
	return now.Sub(ref.PublishedAt) <= s.freshness
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
