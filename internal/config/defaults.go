package config

import (
	"fmt"
	"net/url"
	"time"
)

const currentFeedURL = "https://www.sec.gov/cgi-bin/browse-edgar?action=getcurrent&type=%s&company=&dateb=&owner=include&start=0&count=40&output=atom"

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		SEC: SECConfig{
			UserAgent:   "FilingScanner/1.0 admin@example.com",
			MinInterval: 150 * time.Millisecond,
			DataURL:     "https://data.sec.gov",
			Feeds: []FeedConfig{
				currentFeed("current-8k", "8-K"),
				currentFeed("current-6k", "6-K"),
				currentFeed("current-f6", "F-6"),
				currentFeed("current-sc13d", "SC 13D"),
				currentFeed("current-424b", "424B"),
			},
		},
		Poller: PollerConfig{Freshness: 15 * time.Minute, MaxPerCycle: 25},
		Fetch: FetchConfig{
			MaxDocuments:     2,
			MaxDocumentBytes: 2 << 20,
			MaxTextBytes:     200_000,
			Retry: RetryConfig{
				MaxAttempts:    3,
				AttemptTimeout: 15 * time.Second,
				Delay:          2 * time.Second,
				Cooldown:       10 * time.Second,
			},
		},
		Entity: EntityConfig{
			Retry: RetryConfig{
				MaxAttempts:    3,
				AttemptTimeout: 10 * time.Second,
				Delay:          2 * time.Second,
				Cooldown:       10 * time.Second,
			},
		},
		MarketData: MarketDataConfig{
			ProviderTimeout: 8 * time.Second,
			Finnhub:         ProviderConfig{BaseURL: "https://finnhub.io/api/v1"},
			FMP:             ProviderConfig{BaseURL: "https://financialmodelingprep.com"},
			Polygon:         ProviderConfig{BaseURL: "https://api.polygon.io"},
			Breaker: BreakerConfig{
				Enabled:      true,
				MinRequests:  5,
				FailureRatio: 0.6,
				OpenTimeout:  time.Minute,
			},
		},
		Scheduler: SchedulerConfig{
			Timezone:         defaultTimezone,
			Peak:             WindowConfig{Start: "08:00", End: "10:30"},
			Trading:          WindowConfig{Start: "04:00", End: "20:00"},
			PeakInterval:     10 * time.Second,
			TradingInterval:  30 * time.Second,
			OffHoursInterval: 2 * time.Minute,
			WeekendInterval:  10 * time.Minute,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BaseURL: "https://api.telegram.org"},
		},
		NATS:     NATSConfig{Subject: "filings.alerts"},
		Tracking: TrackingConfig{Path: "logs/track.csv"},
	}
}

func currentFeed(name, form string) FeedConfig {
	return FeedConfig{
		Name:    name,
		Scanner: "atom",
		URL:     fmt.Sprintf(currentFeedURL, url.QueryEscape(form)),
		Type:    "current",
	}
}
