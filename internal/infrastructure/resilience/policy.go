package resilience

import "time"

type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	Delay          time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	Cooldown       time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig is a fixed-delay policy: three attempts two seconds apart,
// ten second cooldown after a rate-limit response.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		AttemptTimeout: 15 * time.Second,
		Delay:          2 * time.Second,
		MaxDelay:       2 * time.Second,
		Multiplier:     1.0,
		Cooldown:       10 * time.Second,

		BreakerEnabled:          false,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      60 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.AttemptTimeout <= 0 {
		out.AttemptTimeout = def.AttemptTimeout
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if out.MaxDelay < out.Delay {
		out.MaxDelay = out.Delay
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = 1.0
	}
	if out.Cooldown < out.Delay {
		out.Cooldown = out.Delay
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
