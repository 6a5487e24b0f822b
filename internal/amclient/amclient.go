// Package amclient is the narrow facade the engine uses to talk to
// external aggregate managers: reserve, delete, and sliver-status
// (spec.md §4.6). It is the engine's only dependency on outside I/O;
// everything upstream of it works purely on the in-memory model.
//
// Each AM URL gets its own circuit breaker, adapted from the per-router
// breaker this facade's circuit-management style is grounded on: a
// chronically failing AM should stop absorbing call latency from the
// scheduler without operator intervention.
package amclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/exoplex/stitchcore/internal/stitcherr"
	"github.com/exoplex/stitchcore/internal/xmldom"
)

// Verb pairs per API version (spec.md §6).
const (
	verbReserveV2 = "createsliver"
	verbDeleteV2  = "deletesliver"
	verbReserveV3 = "allocate"
	verbDeleteV3  = "delete"
)

// ReserveVerb returns the RPC verb this API version uses to reserve.
func ReserveVerb(apiVersion int) string {
	if apiVersion <= 2 {
		return verbReserveV2
	}
	return verbReserveV3
}

// DeleteVerb returns the RPC verb this API version uses to delete.
func DeleteVerb(apiVersion int) string {
	if apiVersion <= 2 {
		return verbDeleteV2
	}
	return verbDeleteV3
}

// SliverState is the tri-state result of a sliver-status poll.
type SliverState int

const (
	SliverPending SliverState = iota
	SliverReady
	SliverFailed
)

// Transport is the actual wire call the facade wraps with breaker and
// classification logic. Production code supplies an XML-RPC/SFA client;
// tests supply a fake (spec.md §1(a) treats the RPC itself as a
// black box).
type Transport interface {
	Reserve(ctx context.Context, url string, verb string, slice string, request *xmldom.Element) (*xmldom.Element, error)
	Delete(ctx context.Context, url string, verb string, slice string) error
	SliverStatus(ctx context.Context, url string, slice string) (SliverState, error)
}

// BreakerConfig configures the per-AM circuit breaker.
type BreakerConfig struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
	HalfOpenMaxRequests    uint32
}

// DefaultBreakerConfig matches the engine's conservative default: three
// consecutive failures opens the breaker for a minute.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxConsecutiveFailures: 3,
		OpenTimeout:            time.Minute,
		HalfOpenMaxRequests:    1,
	}
}

// Client is the AM client facade. It owns one circuit breaker per AM URL
// and classifies transport failures into the stitcherr.RPCError taxonomy.
type Client struct {
	transport Transport
	config    BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[*xmldom.Element]
}

// New returns a Client wrapping the given transport.
func New(transport Transport, config BreakerConfig) *Client {
	return &Client{
		transport: transport,
		config:    config,
		breakers:  map[string]*gobreaker.CircuitBreaker[*xmldom.Element]{},
	}
}

func (c *Client) breakerFor(url string) *gobreaker.CircuitBreaker[*xmldom.Element] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[url]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[*xmldom.Element](gobreaker.Settings{
		Name:        fmt.Sprintf("am-%s", url),
		MaxRequests: c.config.HalfOpenMaxRequests,
		Timeout:     c.config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.config.MaxConsecutiveFailures
		},
	})
	c.breakers[url] = cb
	return cb
}

// Reserve calls the AM's reserve verb for apiVersion, routed through that
// AM's circuit breaker, and returns the manifest document on success.
func (c *Client) Reserve(ctx context.Context, aggregateURN, url string, apiVersion int, slice string, request *xmldom.Element) (*xmldom.Element, error) {
	cb := c.breakerFor(url)
	manifest, err := cb.Execute(func() (*xmldom.Element, error) {
		return c.transport.Reserve(ctx, url, ReserveVerb(apiVersion), slice, request)
	})
	if err != nil {
		return nil, classify(aggregateURN, err)
	}
	return manifest, nil
}

// Delete calls the AM's delete verb for apiVersion, routed through that
// AM's circuit breaker.
func (c *Client) Delete(ctx context.Context, aggregateURN, url string, apiVersion int, slice string) error {
	cb := c.breakerFor(url)
	_, err := cb.Execute(func() (*xmldom.Element, error) {
		return nil, c.transport.Delete(ctx, url, DeleteVerb(apiVersion), slice)
	})
	if err != nil {
		return classify(aggregateURN, err)
	}
	return nil
}

// SliverStatus polls a DCN aggregate's sliver status. It is not routed
// through the circuit breaker: DCN polling is expected to see transient
// "pending" responses and must not trip the breaker on its own.
func (c *Client) SliverStatus(ctx context.Context, aggregateURN, url, slice string) (SliverState, error) {
	state, err := c.transport.SliverStatus(ctx, url, slice)
	if err != nil {
		return SliverPending, classify(aggregateURN, err)
	}
	return state, nil
}

// classify maps a transport failure onto the stitcherr.RPCError
// taxonomy. Transports that already classify their own errors (as
// *stitcherr.RPCError) pass straight through so callers keep the richer
// offending-VLAN detail.
func classify(aggregateURN string, err error) error {
	if rpcErr, ok := err.(*stitcherr.RPCError); ok {
		return rpcErr
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return stitcherr.NewRPCError(stitcherr.RPCBusy, aggregateURN, "circuit breaker open: "+err.Error())
	}
	return stitcherr.NewRPCError(stitcherr.RPCOther, aggregateURN, err.Error())
}
