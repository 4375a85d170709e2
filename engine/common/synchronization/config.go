package synchronization

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/finalitylabs/blocksync/network/codec"
)

const (
	defaultBroadcastPeriod   = time.Second
	defaultBroadcastCooldown = 200 * time.Millisecond
	defaultRequestDelay      = 300 * time.Millisecond
	defaultRequestMaxDelay   = 5 * time.Second
	defaultRequestJitter     = 30

	// peers may ask us for blocks ten times per second, with bursts of
	// twenty requests
	defaultRequestRateLimit = rate.Limit(10)
	defaultRequestBurst     = 20

	// defaultRateLimitedPeers is the number of peers whose request rate we
	// remember
	defaultRateLimitedPeers = 1000

	// defaultRequestQueueCapacity is the number of peers whose latest
	// request, or state, we keep while the engine is busy
	defaultRequestQueueCapacity = 500

	// defaultResponseQueueCapacity is the number of responses we buffer
	defaultResponseQueueCapacity = 500
)

type Config struct {
	BroadcastPeriod   time.Duration // interval between state broadcasts
	BroadcastCooldown time.Duration // minimal interval between two broadcasts
	RequestDelay      time.Duration // delay before the first retry of a block request
	RequestMaxDelay   time.Duration // cap on the retry delay
	RequestJitter     uint64        // jitter of retry delays, in percent

	RequestRateLimit rate.Limit // requests and chain extension requests per second and peer
	RequestBurst     int        // requests a peer may send at once
	RateLimitedPeers int

	// MaxMessageSize limits the encoded size of every response we send.
	MaxMessageSize int

	RequestQueueCapacity  uint
	ResponseQueueCapacity uint
}

func DefaultConfig() *Config {
	return &Config{
		BroadcastPeriod:       defaultBroadcastPeriod,
		BroadcastCooldown:     defaultBroadcastCooldown,
		RequestDelay:          defaultRequestDelay,
		RequestMaxDelay:       defaultRequestMaxDelay,
		RequestJitter:         defaultRequestJitter,
		RequestRateLimit:      defaultRequestRateLimit,
		RequestBurst:          defaultRequestBurst,
		RateLimitedPeers:      defaultRateLimitedPeers,
		MaxMessageSize:        codec.DefaultMaxMessageSize,
		RequestQueueCapacity:  defaultRequestQueueCapacity,
		ResponseQueueCapacity: defaultResponseQueueCapacity,
	}
}

type OptionFunc func(*Config)

// WithBroadcastPeriod sets the interval at which we broadcast our state when
// nothing is finalized.
func WithBroadcastPeriod(period time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.BroadcastPeriod = period
	}
}

// WithBroadcastCooldown sets the minimal interval between two broadcasts
// triggered by finalization.
func WithBroadcastCooldown(cooldown time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.BroadcastCooldown = cooldown
	}
}

// WithRequestDelay sets the base delay between two attempts to request the
// same block.
func WithRequestDelay(delay time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.RequestDelay = delay
	}
}

// WithRequestMaxDelay caps the delay between two attempts to request the
// same block.
func WithRequestMaxDelay(delay time.Duration) OptionFunc {
	return func(cfg *Config) {
		cfg.RequestMaxDelay = delay
	}
}

// WithRequestJitter sets the random deviation of request delays, in percent
// of the delay.
func WithRequestJitter(percent uint64) OptionFunc {
	return func(cfg *Config) {
		cfg.RequestJitter = percent
	}
}

// WithRequestRateLimit sets how many requests of a single peer we serve per
// second, and how many at once.
func WithRequestRateLimit(limit rate.Limit, burst int) OptionFunc {
	return func(cfg *Config) {
		cfg.RequestRateLimit = limit
		cfg.RequestBurst = burst
	}
}

// WithMaxMessageSize sets the limit on the encoded size of a response.
// Longer responses are split into several messages.
func WithMaxMessageSize(size int) OptionFunc {
	return func(cfg *Config) {
		cfg.MaxMessageSize = size
	}
}

func WithRequestQueueCapacity(capacity uint) OptionFunc {
	return func(cfg *Config) {
		cfg.RequestQueueCapacity = capacity
	}
}

func WithResponseQueueCapacity(capacity uint) OptionFunc {
	return func(cfg *Config) {
		cfg.ResponseQueueCapacity = capacity
	}
}

// Validate checks that the configuration can drive an engine, reporting all
// problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	if c.BroadcastPeriod <= 0 {
		result = multierror.Append(result, fmt.Errorf("broadcast period must be positive, got %s", c.BroadcastPeriod))
	}
	if c.BroadcastCooldown < 0 {
		result = multierror.Append(result, fmt.Errorf("broadcast cooldown must not be negative, got %s", c.BroadcastCooldown))
	}
	if c.RequestDelay <= 0 {
		result = multierror.Append(result, fmt.Errorf("request delay must be positive, got %s", c.RequestDelay))
	}
	if c.RequestMaxDelay < c.RequestDelay {
		result = multierror.Append(result, fmt.Errorf("request max delay %s is smaller than the request delay %s", c.RequestMaxDelay, c.RequestDelay))
	}
	if c.RequestJitter > 100 {
		result = multierror.Append(result, fmt.Errorf("request jitter must be a percentage, got %d", c.RequestJitter))
	}
	if c.RequestRateLimit <= 0 || c.RequestBurst <= 0 {
		result = multierror.Append(result, fmt.Errorf("request rate limit %v with burst %d does not admit any request", c.RequestRateLimit, c.RequestBurst))
	}
	if c.RateLimitedPeers <= 0 {
		result = multierror.Append(result, fmt.Errorf("number of rate limited peers must be positive, got %d", c.RateLimitedPeers))
	}
	if c.MaxMessageSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("max message size must be positive, got %d", c.MaxMessageSize))
	}
	if c.RequestQueueCapacity == 0 || c.ResponseQueueCapacity == 0 {
		result = multierror.Append(result, fmt.Errorf("queue capacities must be positive"))
	}
	return result.ErrorOrNil()
}
