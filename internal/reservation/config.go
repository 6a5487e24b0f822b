package reservation

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// EngineConfig holds the policy knobs spec.md §9 Design Notes says the
// source leaves unspecified: DCN polling cadence, per-AM RPC timeout,
// and Busy backoff bounds. Every field defaults if left zero, the way
// the teacher populates its own *Config structs.
type EngineConfig struct {
	// Parallelism bounds how many aggregates the scheduler dispatches
	// concurrently within one ready-set tick.
	Parallelism int

	// PerAMTimeout bounds a single reserve/delete/sliverStatus RPC.
	PerAMTimeout time.Duration

	// MaxBusyRetries bounds the number of retries after a Busy response
	// (spec.md §8 scenario 5: "total attempts <= configured bound").
	MaxBusyRetries int
	// BusyBackoffInitial / BusyBackoffMax bound the exponential backoff
	// between Busy retries.
	BusyBackoffInitial time.Duration
	BusyBackoffMax     time.Duration

	// DCNPollInterval / DCNMaxPollAttempts govern the sliver-status
	// polling loop for DCN aggregates (spec.md §4.4).
	DCNPollInterval   time.Duration
	DCNMaxPollAttempts int

	// AuditDir, if non-empty, enables persisting every per-AM reserve
	// request document under it (spec.md §6 Persisted state). Left empty,
	// no audit files are written.
	AuditDir string

	Logger zerolog.Logger
}

// DefaultEngineConfig returns conservative defaults suitable for tests
// and a reasonable starting point for production callers.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Parallelism:        4,
		PerAMTimeout:       30 * time.Second,
		MaxBusyRetries:     5,
		BusyBackoffInitial: 500 * time.Millisecond,
		BusyBackoffMax:     30 * time.Second,
		DCNPollInterval:    2 * time.Second,
		DCNMaxPollAttempts: 30,
		Logger:             zerolog.New(io.Discard),
	}
}

func (c *EngineConfig) applyDefaults() {
	defaults := DefaultEngineConfig()
	if c.Parallelism <= 0 {
		c.Parallelism = defaults.Parallelism
	}
	if c.PerAMTimeout <= 0 {
		c.PerAMTimeout = defaults.PerAMTimeout
	}
	if c.MaxBusyRetries <= 0 {
		c.MaxBusyRetries = defaults.MaxBusyRetries
	}
	if c.BusyBackoffInitial <= 0 {
		c.BusyBackoffInitial = defaults.BusyBackoffInitial
	}
	if c.BusyBackoffMax <= 0 {
		c.BusyBackoffMax = defaults.BusyBackoffMax
	}
	if c.DCNPollInterval <= 0 {
		c.DCNPollInterval = defaults.DCNPollInterval
	}
	if c.DCNMaxPollAttempts <= 0 {
		c.DCNMaxPollAttempts = defaults.DCNMaxPollAttempts
	}
}
