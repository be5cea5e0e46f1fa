package liveness

import (
	"context"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"golang.org/x/sync/errgroup"
)

// Sweeper is the stale-device sweeper (spec.md §4.4): a periodic task
// that downgrades devices whose last heartbeat exceeded the liveness
// threshold. Grounded on cache_grpc.go's errgroup-based fan-out
// (there, over Merkle tree nodes; here, over device shards) to sweep
// concurrently rather than one device at a time.
type Sweeper struct {
	registry *registry.Registry
	tracker  *Tracker
	clock    clock.Clock

	period            time.Duration
	heartbeatInterval time.Duration
	missThreshold     int

	// OnOffline is invoked for every device the sweeper downgrades,
	// carrying the device_offline(device_id) event the coordinator
	// subscribes to for straggler handling (spec.md §4.4, §4.7).
	OnOffline func(deviceID string)

	shardConcurrency int
}

func NewSweeper(reg *registry.Registry, tracker *Tracker, clk clock.Clock, period, heartbeatInterval time.Duration, missThreshold int) *Sweeper {
	return &Sweeper{
		registry:          reg,
		tracker:           tracker,
		clock:             clk,
		period:            period,
		heartbeatInterval: heartbeatInterval,
		missThreshold:     missThreshold,
		shardConcurrency:  8,
	}
}

// Run blocks, sweeping every period until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if err := s.SweepOnce(ctx); err != nil {
				log.Warn("sweep failed:", err)
			}
		}
	}
}

// SweepOnce performs a single sweep pass. Idempotent: rerunning with no
// intervening heartbeats yields the same outcome (spec.md §4.4).
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	devices, err := s.registry.List(ctx, registry.Filter{
		Status: []registry.Status{registry.StatusOnline, registry.StatusTraining},
	})
	if err != nil {
		return err
	}

	staleAfter := time.Duration(s.missThreshold) * s.heartbeatInterval
	now := s.clock.Now()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.shardConcurrency)

	for _, d := range devices {
		d := d
		eg.Go(func() error {
			return s.sweepDevice(egCtx, d, now, staleAfter)
		})
	}

	return eg.Wait()
}

func (s *Sweeper) sweepDevice(ctx context.Context, d registry.Device, now time.Time, staleAfter time.Duration) error {
	lastSeen, tracked := s.tracker.LastSeen(d.DeviceID)
	if !tracked {
		lastSeen = d.LastSeenAt
	}

	if now.Sub(lastSeen) <= staleAfter {
		return nil
	}

	if err := s.registry.Touch(ctx, d.DeviceID, d.LastMetrics, registry.StatusOffline); err != nil {
		return err
	}
	s.tracker.Evict(d.DeviceID)

	if s.OnOffline != nil {
		s.OnOffline(d.DeviceID)
	}

	return nil
}
