package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/parse"
	"github.com/melih/tunnelwatch/internal/core/ports"
	"github.com/melih/tunnelwatch/internal/log"
	"github.com/melih/tunnelwatch/internal/metrics"
)

// Options tunes an Aggregator.
type Options struct {
	DisplayPrefix  string
	MaxConcurrency int              // concurrent per-tunnel tasks; <1 means unbounded
	Now            func() time.Time // defaults to time.Now
}

// Aggregator assembles tunnel records from the container runtime, the
// entrypoint cache and live exit-point probes. It never mutates the fleet.
type Aggregator struct {
	runtime     ports.ContainerRuntime
	entrypoints *EntrypointCache
	prober      ports.ExitProber
	opts        Options
	logger      zerolog.Logger
}

func NewAggregator(runtime ports.ContainerRuntime, entrypoints *EntrypointCache, prober ports.ExitProber, opts Options) *Aggregator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		runtime:     runtime,
		entrypoints: entrypoints,
		prober:      prober,
		opts:        opts,
		logger:      log.WithComponent("aggregator"),
	}
}

// GetStatus returns one record per discovered tunnel, sorted by id. When ids
// is non-empty only those tunnels are returned. The error is non-nil only
// when the runtime itself failed; per-tunnel problems show up as Unknown
// fields.
func (a *Aggregator) GetStatus(ctx context.Context, ids []domain.TunnelID) ([]domain.TunnelRecord, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StatusQueryDuration, "status")

	descs, err := a.discover(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return []domain.TunnelRecord{}, nil
	}

	handles := make([]string, len(descs))
	for i, d := range descs {
		handles[i] = d.Handle
	}
	facts, err := a.runtime.BatchIntrospect(ctx, handles)
	if err != nil {
		return nil, fmt.Errorf("introspect tunnels: %w", err)
	}
	if len(facts) != len(handles) {
		return nil, fmt.Errorf("introspect tunnels: %w: got %d results for %d containers",
			domain.ErrRuntimeUnavailable, len(facts), len(handles))
	}

	now := a.opts.Now()
	records := make([]domain.TunnelRecord, len(descs))
	for i, d := range descs {
		records[i] = a.baseRecord(d)
		records[i].Uptime = parse.Uptime(facts[i].CreatedAt, now)
		records[i].MemoryMB = parse.MemoryMB(facts[i].MemoryUsage)
	}

	// Each task writes only its own fields of records[i].
	var g errgroup.Group
	if a.opts.MaxConcurrency > 0 {
		g.SetLimit(a.opts.MaxConcurrency)
	}
	for i, d := range descs {
		rec := &records[i]
		logger := log.WithTunnel(a.logger, int(d.TunnelID))
		g.Go(isolated(logger, "logs", func() {
			logs, err := a.runtime.FetchLogs(ctx, d.Handle)
			if err != nil {
				logger.Debug().Err(err).Msg("fetch logs failed")
				return
			}
			rec.VPNServer = parse.VPNServer(logs)
		}))
		g.Go(isolated(logger, "entrypoint", func() {
			fact := a.entrypoints.Resolve(ctx, d.TunnelID)
			rec.EntrypointLocation = fact.Location
			rec.EntrypointAddress = fact.Address
		}))
		if rec.Status == domain.StatusUp && rec.Port.Known() {
			g.Go(isolated(logger, "probe", func() {
				exit := a.prober.Probe(ctx, rec.Port)
				rec.ExitAddress = exit.Address
				rec.ExitCountry = exit.Country
			}))
		}
	}
	_ = g.Wait()

	sortRecords(records)
	if len(ids) == 0 {
		a.observeFleet(records)
	}
	return records, nil
}

// GetHealth is the cheap variant of GetStatus: discovery only, no
// introspection, logs, entrypoints or probes.
func (a *Aggregator) GetHealth(ctx context.Context, ids []domain.TunnelID) ([]domain.HealthRecord, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.StatusQueryDuration, "health")

	descs, err := a.discover(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.HealthRecord, 0, len(descs))
	for _, d := range descs {
		status := parse.ClassifyStatus(d.Status)
		out = append(out, domain.HealthRecord{
			ID:      d.TunnelID,
			Name:    parse.DisplayName(a.opts.DisplayPrefix, d.TunnelID),
			Port:    parse.HostPort(d.Ports),
			Status:  status,
			Healthy: status == domain.StatusUp,
		})
	}
	slices.SortStableFunc(out, func(x, y domain.HealthRecord) int { return int(x.ID) - int(y.ID) })
	return out, nil
}

// discover lists the fleet, narrowing the runtime query when exactly one id
// is requested, and keeps only the requested ids. Filtering happens on the
// descriptors so a multi-id query costs one runtime call.
func (a *Aggregator) discover(ctx context.Context, ids []domain.TunnelID) ([]domain.ContainerDescriptor, error) {
	var filter *domain.TunnelID
	if len(ids) == 1 {
		filter = &ids[0]
	}
	descs, err := a.runtime.Discover(ctx, filter)
	if err != nil {
		a.logger.Error().Err(err).Msg("discovery failed")
		return nil, fmt.Errorf("discover tunnels: %w", err)
	}
	if len(ids) == 0 {
		return descs, nil
	}
	return slices.DeleteFunc(descs, func(d domain.ContainerDescriptor) bool {
		return !slices.Contains(ids, d.TunnelID)
	}), nil
}

func (a *Aggregator) baseRecord(d domain.ContainerDescriptor) domain.TunnelRecord {
	return domain.TunnelRecord{
		ID:                 d.TunnelID,
		Name:               parse.DisplayName(a.opts.DisplayPrefix, d.TunnelID),
		Port:               parse.HostPort(d.Ports),
		Status:             parse.ClassifyStatus(d.Status),
		Uptime:             domain.Unknown,
		EntrypointLocation: domain.Unknown,
		EntrypointAddress:  domain.Unknown,
		ExitCountry:        domain.Unknown,
		ExitAddress:        domain.Unknown,
		VPNServer:          domain.Unknown,
	}
}

// isolated wraps a per-tunnel task so a panic only loses that task's fact.
func isolated(logger zerolog.Logger, task string, fn func()) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str("task", task).
					Interface("panic", r).
					Msg("tunnel task panicked")
			}
		}()
		fn()
		return nil
	}
}

func (a *Aggregator) observeFleet(records []domain.TunnelRecord) {
	var up, down int
	for _, r := range records {
		if r.Status == domain.StatusUp {
			up++
		} else {
			down++
		}
	}
	metrics.TunnelsTotal.WithLabelValues(string(domain.StatusUp)).Set(float64(up))
	metrics.TunnelsTotal.WithLabelValues(string(domain.StatusDown)).Set(float64(down))
	metrics.FleetMemoryMB.Set(Summarize(records).TotalMemoryMB)
}

func sortRecords(records []domain.TunnelRecord) {
	slices.SortStableFunc(records, func(x, y domain.TunnelRecord) int { return int(x.ID) - int(y.ID) })
}

// Summarize computes fleet totals over records.
func Summarize(records []domain.TunnelRecord) domain.FleetSummary {
	var total float64
	for _, r := range records {
		total += r.MemoryMB
	}
	if records == nil {
		records = []domain.TunnelRecord{}
	}
	return domain.FleetSummary{
		Tunnels:       records,
		TotalMemoryMB: parse.RoundMB(total),
		Count:         len(records),
	}
}

// SummarizeHealth counts healthy tunnels.
func SummarizeHealth(records []domain.HealthRecord) domain.HealthSummary {
	healthy := 0
	for _, r := range records {
		if r.Healthy {
			healthy++
		}
	}
	if records == nil {
		records = []domain.HealthRecord{}
	}
	return domain.HealthSummary{Tunnels: records, Healthy: healthy, Count: len(records)}
}
