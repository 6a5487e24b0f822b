// Package reservation is the dependency-driven scheduler (spec.md §4.4):
// it drives every aggregate through pending -> in-progress -> completed,
// calling VLAN negotiation before each RPC and handling retries,
// VLAN-unavailable rejections, and cascading redo on upstream change.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/exoplex/stitchcore/internal/amclient"
	"github.com/exoplex/stitchcore/internal/auditlog"
	"github.com/exoplex/stitchcore/internal/dependencies"
	"github.com/exoplex/stitchcore/internal/events"
	"github.com/exoplex/stitchcore/internal/negotiate"
	"github.com/exoplex/stitchcore/internal/rspecdoc"
	"github.com/exoplex/stitchcore/internal/stitcherr"
	"github.com/exoplex/stitchcore/internal/stitching"
	"github.com/exoplex/stitchcore/internal/vlanrange"
	"github.com/exoplex/stitchcore/internal/xmldom"
)

// Engine is one orchestration run over a World.
type Engine struct {
	world     *stitching.World
	client    AMFacade
	config    EngineConfig
	publisher *events.Publisher
	audit     auditlog.Writer
}

// New returns an Engine bound to world, dispatching RPCs through client.
// A nil publisher is replaced with one wrapping a fresh bus with no
// subscribers — callers that don't care about lifecycle events can pass nil.
func New(world *stitching.World, client AMFacade, config EngineConfig, publisher *events.Publisher) *Engine {
	config.applyDefaults()
	if publisher == nil {
		publisher = events.NewPublisher(events.NewBus(events.DefaultOptions()))
	}
	return &Engine{
		world:     world,
		client:    client,
		config:    config,
		publisher: publisher,
		audit:     auditlog.Writer{Dir: config.AuditDir, Logger: config.Logger},
	}
}

// RunResult reports which aggregates a Run call could not complete
// because of a VLAN rejection — the caller is expected to rerun SCS
// excluding those hops (the flagged Hop.ExcludeFromSCS fields) and call
// Run again with the updated World.
type RunResult struct {
	Blocked []string
}

// Run drives every aggregate referenced by the World's RSpec to
// completion or to a blocked state, respecting dependsOn order. It
// returns as soon as the dependency graph is found cyclic or any
// non-recoverable error occurs; a VLANUnavailable rejection blocks only
// the affected aggregate (and anything transitively depending on it) and
// lets the rest of the run proceed.
func (e *Engine) Run(ctx context.Context, slice string) (RunResult, error) {
	if err := dependencies.Build(e.world); err != nil {
		var cyc *stitcherr.CycleError
		if errors.As(err, &cyc) {
			_ = e.publisher.CycleDetected(ctx, cyc.URNs)
		}
		return RunResult{}, err
	}

	targets := e.targetAggregates()
	blocked := map[string]bool{}

	for {
		pending := 0
		for _, agg := range targets {
			if agg.Completed() || blocked[agg.URN] {
				continue
			}
			pending++
		}
		if pending == 0 {
			return RunResult{Blocked: blockedList(blocked)}, nil
		}

		progressed := e.cascadeBlocked(targets, blocked)

		ready := readySet(targets, blocked)
		if len(ready) == 0 {
			if progressed {
				continue
			}
			return RunResult{Blocked: blockedList(blocked)}, stitcherr.NewInvariantError("", "scheduler stalled: no ready aggregates but run incomplete")
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.config.Parallelism)
		for _, agg := range ready {
			agg := agg
			g.Go(func() error {
				wasBlocked, err := e.allocate(gctx, agg, slice)
				if wasBlocked {
					blocked[agg.URN] = true
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return RunResult{Blocked: blockedList(blocked)}, err
		}
	}
}

func blockedList(blocked map[string]bool) []string {
	out := make([]string, 0, len(blocked))
	for urn := range blocked {
		out = append(out, urn)
	}
	return out
}

// cascadeBlocked marks as blocked any not-yet-completed aggregate whose
// dependsOn contains an already-blocked aggregate — it can never become
// ready this run. Returns whether any new aggregate was marked.
func (e *Engine) cascadeBlocked(targets []*stitching.Aggregate, blocked map[string]bool) bool {
	changed := false
	for _, agg := range targets {
		if agg.Completed() || blocked[agg.URN] {
			continue
		}
		for depURN := range agg.DependsOn {
			if blocked[depURN] {
				blocked[agg.URN] = true
				changed = true
				break
			}
		}
	}
	return changed
}

func (e *Engine) targetAggregates() []*stitching.Aggregate {
	if e.world.RSpec == nil {
		return nil
	}
	out := make([]*stitching.Aggregate, 0, len(e.world.RSpec.AMURNs))
	for urn := range e.world.RSpec.AMURNs {
		if agg, ok := e.world.Find(urn); ok {
			out = append(out, agg)
		}
	}
	return out
}

func readySet(targets []*stitching.Aggregate, blocked map[string]bool) []*stitching.Aggregate {
	var ready []*stitching.Aggregate
	for _, agg := range targets {
		if blocked[agg.URN] {
			continue
		}
		if agg.Ready() {
			ready = append(ready, agg)
		}
	}
	return ready
}

// allocate implements the per-aggregate contract from spec.md §4.4. It
// returns (blocked, err): blocked is true when a VLANUnavailable
// rejection means this aggregate cannot complete this run (recoverable,
// does not abort the group); err is non-nil only for errors that must
// abort the entire run.
func (e *Engine) allocate(ctx context.Context, agg *stitching.Aggregate, slice string) (bool, error) {
	logger := e.config.Logger.With().Str("aggregate", agg.URN).Logger()

	if agg.InProcess() || agg.Completed() {
		logger.Warn().Msg("allocate called on in-progress or completed aggregate, no-op")
		return false, nil
	}

	result, err := negotiate.Aggregate(e.world, agg)
	if err != nil {
		return false, fmt.Errorf("aggregate %s: negotiation: %w", agg.URN, err)
	}

	if result.MustDelete {
		logger.Info().Msg("upstream change invalidated manifest, redoing reservation")
		_ = e.publisher.AggregateRedoTriggered(ctx, agg.URN, "upstream VLAN manifest changed")
		if err := e.deleteReservation(ctx, agg, slice); err != nil {
			return false, fmt.Errorf("aggregate %s: delete on redo: %w", agg.URN, err)
		}
		result.AlreadyDone = false
	}

	if result.AlreadyDone {
		agg.SetCompleted(true)
		logger.Debug().Msg("prior manifest still satisfies all owned hops, no RPC issued")
		return false, nil
	}

	agg.SetInProcess(true)

	request, err := rspecdoc.Write(e.world, agg, e.world.RSpec.Dom)
	if err != nil {
		agg.SetInProcess(false)
		return false, fmt.Errorf("aggregate %s: build request document: %w", agg.URN, err)
	}
	agg.RequestDom = request
	e.audit.Persist(slice, agg.URN, amclient.ReserveVerb(agg.APIVersion), request)

	manifest, rpcErr := e.reserveWithRetry(ctx, agg, slice, request)
	if rpcErr != nil {
		var rpc *stitcherr.RPCError
		if errors.As(rpcErr, &rpc) && rpc.Kind == stitcherr.RPCVLANUnavailable {
			e.recordVLANUnavailable(ctx, agg, rpc)
			agg.SetInProcess(false)
			return true, nil
		}
		agg.SetInProcess(false)
		return false, fmt.Errorf("aggregate %s: reserve: %w", agg.URN, rpcErr)
	}

	if agg.DCN {
		if err := e.pollUntilReady(ctx, agg, slice); err != nil {
			agg.SetInProcess(false)
			return false, fmt.Errorf("aggregate %s: sliver status: %w", agg.URN, err)
		}
	}

	if err := e.applyManifest(agg, manifest); err != nil {
		agg.SetInProcess(false)
		return false, err
	}

	agg.ManifestDom = manifest
	agg.SetCompleted(true)
	agg.SetInProcess(false)
	_ = e.publisher.AggregateCompleted(ctx, agg.URN)
	logger.Info().Msg("aggregate reservation completed")
	return false, nil
}

// recordVLANUnavailable adds the offending tag to every hop this
// aggregate owns. The AM's rejection does not identify which specific
// hop's suggested VLAN it refused, so — conservatively — every owned
// hop is excluded from that tag going forward (spec.md §4.5/§9).
func (e *Engine) recordVLANUnavailable(ctx context.Context, agg *stitching.Aggregate, rpc *stitcherr.RPCError) {
	for _, ref := range agg.Hops {
		hop := e.world.ResolveHop(ref)
		if hop == nil {
			continue
		}
		hop.VlansUnavailable = hop.VlansUnavailable.Union(vlanSingleOrEmpty(rpc.OffendingVLAN))
		hop.ExcludeFromSCS = true
		_ = e.publisher.VLANUnavailable(ctx, agg.URN, hop.ID, rpc.OffendingVLAN)
	}
}

// reserveWithRetry issues reserve, retrying Busy responses with bounded
// exponential backoff (spec.md §4.4 step 7, §8 scenario 5).
func (e *Engine) reserveWithRetry(ctx context.Context, agg *stitching.Aggregate, slice string, request *xmldom.Element) (*xmldom.Element, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = e.config.BusyBackoffInitial
	expBackoff.MaxInterval = e.config.BusyBackoffMax
	bounded := backoff.WithMaxRetries(expBackoff, uint64(e.config.MaxBusyRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	var manifest *xmldom.Element
	operation := func() error {
		rctx, cancel := context.WithTimeout(ctx, e.config.PerAMTimeout)
		defer cancel()

		m, err := e.client.Reserve(rctx, agg.URN, agg.URL, agg.APIVersion, slice, request)
		if err != nil {
			var rpc *stitcherr.RPCError
			if errors.As(err, &rpc) && rpc.Kind == stitcherr.RPCBusy {
				return err // retryable
			}
			return backoff.Permanent(err)
		}
		manifest = m
		return nil
	}

	if err := backoff.Retry(operation, withCtx); err != nil {
		if permanent, ok := err.(*backoff.PermanentError); ok {
			return nil, permanent.Err
		}
		return nil, err
	}
	return manifest, nil
}

// deleteReservation clears this aggregate's manifest state and issues a
// delete RPC, then marks every transitively dependent aggregate
// incomplete (ripple-down invalidation, spec.md §4.4). It does not reset
// inProcess; callers follow with a fresh allocate.
func (e *Engine) deleteReservation(ctx context.Context, agg *stitching.Aggregate, slice string) error {
	for _, ref := range agg.Hops {
		hop := e.world.ResolveHop(ref)
		if hop == nil {
			continue
		}
		hop.Link.ClearManifest()
	}
	agg.ManifestDom = nil

	dctx, cancel := context.WithTimeout(ctx, e.config.PerAMTimeout)
	defer cancel()
	if err := e.client.Delete(dctx, agg.URN, agg.URL, agg.APIVersion, slice); err != nil {
		return err
	}

	agg.SetCompleted(false)
	for _, dep := range stitching.TransitiveIsDependencyFor(agg) {
		dep.SetCompleted(false)
	}
	return nil
}

// pollUntilReady polls sliver status for DCN aggregates until ready,
// failed, or the attempt bound is exhausted (spec.md §4.4, §9).
func (e *Engine) pollUntilReady(ctx context.Context, agg *stitching.Aggregate, slice string) error {
	for attempt := 0; attempt < e.config.DCNMaxPollAttempts; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, e.config.PerAMTimeout)
		state, err := e.client.SliverStatus(sctx, agg.URN, agg.URL, slice)
		cancel()
		if err != nil {
			return err
		}
		switch state {
		case amclient.SliverReady:
			return nil
		case amclient.SliverFailed:
			return stitcherr.NewInvariantError(agg.URN, "DCN sliver status reported failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.config.DCNPollInterval):
		}
	}
	return stitcherr.NewInvariantError(agg.URN, "DCN sliver status polling exhausted attempts without reaching ready")
}

// applyManifest validates the returned manifest against spec.md §4.4
// step 5's rules and, if valid, writes the manifested VLANs into every
// owned hop's link.
func (e *Engine) applyManifest(agg *stitching.Aggregate, manifest *xmldom.Element) error {
	for _, ref := range agg.Hops {
		hop := e.world.ResolveHop(ref)
		if hop == nil {
			continue
		}

		avail, suggested, err := rspecdoc.ParseManifest(manifest, ref.PathID, ref.HopID)
		if err != nil {
			return err
		}

		if _, ok := suggested.SingleValue(); !ok {
			return stitcherr.NewManifestInvalidError(agg.URN, hop.ID, "suggested VLAN must be a non-empty singleton")
		}
		if avail.IsEmpty() {
			return stitcherr.NewManifestInvalidError(agg.URN, hop.ID, "available range must be non-empty")
		}
		if !suggested.IsSubsetOf(hop.Link.VlanSuggestedRequest) {
			return stitcherr.NewVLANMismatchError(agg.URN, hop.ID, hop.Link.VlanSuggestedRequest.String(), suggested.String())
		}

		hop.Link.VlanRangeManifest = &avail
		hop.Link.VlanSuggestedManifest = &suggested
	}
	return nil
}

func vlanSingleOrEmpty(vlan int) vlanrange.Range {
	if vlan <= 0 {
		return vlanrange.Empty()
	}
	return vlanrange.Single(vlan)
}
