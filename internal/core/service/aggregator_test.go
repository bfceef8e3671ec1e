package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

var fixedNow = time.Date(2025, 5, 27, 16, 10, 0, 0, time.UTC)

func fleet() *fakeRuntime {
	return &fakeRuntime{
		// Discovery order deliberately differs from id order.
		descs: []domain.ContainerDescriptor{
			{Handle: "c5", TunnelID: 5, Status: "Up 2 hours", Ports: "0.0.0.0:1085->1080/tcp"},
			{Handle: "c0", TunnelID: 0, Status: "Up 1 day (healthy)", Ports: "0.0.0.0:1080->1080/tcp"},
			{Handle: "c2", TunnelID: 2, Status: "Up 5 minutes", Ports: "0.0.0.0:1082->1080/tcp"},
		},
		intro: map[string]domain.Introspection{
			"c0": {CreatedAt: "2025-05-26T13:07:54.214207407Z", MemoryUsage: "512MiB / 2GiB"},
			"c2": {CreatedAt: "2025-05-27T16:00:00.000000001Z", MemoryUsage: "1.5GiB / 4GiB"},
			"c5": {CreatedAt: "2025-05-27T14:00:00Z", MemoryUsage: "0.5KiB / 1GiB"},
		},
		logs: map[string]string{
			"c0": "init\nConnected to VPN server: de512.nordvpn.com\n",
			"c2": "Connected to VPN server fr7.nordvpn.com",
			"c5": "still connecting",
		},
	}
}

func entrypoints() *fakeLookup {
	return &fakeLookup{facts: map[domain.TunnelID]domain.EntrypointFact{
		0: {Location: "Germany", Address: "185.1.1.1"},
		2: {Location: "France", Address: "185.2.2.2"},
		5: {Location: domain.Unknown, Address: "185.5.5.5"},
	}}
}

func echoProber() *fakeProber {
	return &fakeProber{probe: func(port domain.Port) domain.ExitPointFact {
		return domain.ExitPointFact{Address: "10.0.0." + port.String()[2:], Country: "Netherlands"}
	}}
}

func newTestAggregator(rt *fakeRuntime, lookup *fakeLookup, prober *fakeProber) *Aggregator {
	return NewAggregator(rt, NewEntrypointCache(lookup), prober, Options{
		DisplayPrefix:  "LLUSTR",
		MaxConcurrency: 4,
		Now:            func() time.Time { return fixedNow },
	})
}

func ids(records []domain.TunnelRecord) []domain.TunnelID {
	out := make([]domain.TunnelID, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestGetStatusReturnsSortedCompleteRecords(t *testing.T) {
	agg := newTestAggregator(fleet(), entrypoints(), echoProber())

	records, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []domain.TunnelID{0, 2, 5}, ids(records))

	r0 := records[0]
	assert.Equal(t, "LLUSTR[0]", r0.Name)
	assert.Equal(t, domain.Port(1080), r0.Port)
	assert.Equal(t, domain.StatusUp, r0.Status)
	assert.Equal(t, "1d 3h 2m", r0.Uptime)
	assert.Equal(t, "Germany", r0.EntrypointLocation)
	assert.Equal(t, "185.1.1.1", r0.EntrypointAddress)
	assert.Equal(t, "10.0.0.80", r0.ExitAddress)
	assert.Equal(t, "Netherlands", r0.ExitCountry)
	assert.Equal(t, "de512.nordvpn.com", r0.VPNServer)
	assert.InDelta(t, 512.0, r0.MemoryMB, 1e-9)

	// Nanoseconds are truncated before the elapsed time is computed.
	assert.Equal(t, "10m", records[1].Uptime)
	assert.Equal(t, "fr7.nordvpn.com", records[1].VPNServer)
	assert.Equal(t, "2h 10m", records[2].Uptime)
	assert.Equal(t, domain.Unknown, records[2].VPNServer)
}

func TestGetStatusFleetMemory(t *testing.T) {
	agg := newTestAggregator(fleet(), entrypoints(), echoProber())

	records, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 1536.0, records[1].MemoryMB, 1e-9)
	assert.InDelta(t, 0.000488, records[2].MemoryMB, 1e-6)

	summary := Summarize(records)
	assert.Equal(t, 2048.0, summary.TotalMemoryMB)
	assert.Equal(t, 3, summary.Count)
}

func TestGetStatusSingleIDMatchesUnfiltered(t *testing.T) {
	rt := fleet()
	agg := newTestAggregator(rt, entrypoints(), echoProber())

	all, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)

	one, err := agg.GetStatus(context.Background(), []domain.TunnelID{2})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, all[1], one[0])

	require.Len(t, rt.filters, 2)
	assert.Nil(t, rt.filters[0])
	require.NotNil(t, rt.filters[1])
	assert.Equal(t, domain.TunnelID(2), *rt.filters[1])
}

func TestGetStatusMultipleIDsUseOneDiscovery(t *testing.T) {
	rt := fleet()
	prober := echoProber()
	agg := newTestAggregator(rt, entrypoints(), prober)

	records, err := agg.GetStatus(context.Background(), []domain.TunnelID{5, 0, 42})
	require.NoError(t, err)
	assert.Equal(t, []domain.TunnelID{0, 5}, ids(records))
	assert.Len(t, rt.filters, 1)
	assert.Nil(t, rt.filters[0])
	assert.EqualValues(t, 2, prober.calls.Load())
}

func TestGetStatusProbeFailureIsIsolated(t *testing.T) {
	prober := &fakeProber{probe: func(port domain.Port) domain.ExitPointFact {
		if port == 1082 {
			time.Sleep(50 * time.Millisecond)
			return domain.UnknownExitPoint
		}
		return domain.ExitPointFact{Address: "203.0.113.9", Country: "Sweden"}
	}}
	agg := newTestAggregator(fleet(), entrypoints(), prober)

	records, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, domain.Unknown, records[1].ExitAddress)
	assert.Equal(t, domain.Unknown, records[1].ExitCountry)
	assert.Equal(t, "France", records[1].EntrypointLocation)
	for _, r := range []domain.TunnelRecord{records[0], records[2]} {
		assert.Equal(t, "203.0.113.9", r.ExitAddress)
		assert.Equal(t, "Sweden", r.ExitCountry)
	}
}

func TestGetStatusPanickingTaskOnlyLosesItsFact(t *testing.T) {
	prober := &fakeProber{probe: func(port domain.Port) domain.ExitPointFact {
		if port == 1080 {
			panic("socks handshake exploded")
		}
		return domain.ExitPointFact{Address: "203.0.113.9", Country: "Sweden"}
	}}
	agg := newTestAggregator(fleet(), entrypoints(), prober)

	records, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Unknown, records[0].ExitAddress)
	assert.Equal(t, "Germany", records[0].EntrypointLocation)
	assert.Equal(t, "Sweden", records[1].ExitCountry)
}

func TestGetStatusSkipsProbeForDownOrUnpublished(t *testing.T) {
	rt := fleet()
	rt.descs[0].Status = "Up 2 hours (unhealthy)"
	rt.descs[2].Ports = "1080/tcp"
	prober := echoProber()
	agg := newTestAggregator(rt, entrypoints(), prober)

	records, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, prober.calls.Load())

	assert.Equal(t, domain.StatusDown, records[2].Status)
	assert.Equal(t, domain.Unknown, records[2].ExitAddress)
	assert.Equal(t, domain.NoPort, records[1].Port)
	assert.Equal(t, domain.Unknown, records[1].ExitCountry)
	// Entrypoint does not depend on the tunnel being up.
	assert.Equal(t, "185.5.5.5", records[2].EntrypointAddress)
}

func TestGetStatusDegradesPerTunnelFacts(t *testing.T) {
	rt := fleet()
	rt.intro["c2"] = domain.Introspection{CreatedAt: "garbage", MemoryUsage: "n/a"}
	rt.logErr = map[string]error{"c0": errors.New("log driver none")}
	lookup := entrypoints()
	delete(lookup.facts, 5)
	agg := newTestAggregator(rt, lookup, echoProber())

	records, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, domain.Unknown, records[0].VPNServer)
	assert.Equal(t, "Germany", records[0].EntrypointLocation)
	assert.Equal(t, domain.Unknown, records[1].Uptime)
	assert.Zero(t, records[1].MemoryMB)
	assert.Equal(t, domain.UnknownEntrypoint.Location, records[2].EntrypointLocation)
	assert.Equal(t, domain.UnknownEntrypoint.Address, records[2].EntrypointAddress)
}

func TestGetStatusEmptyFleet(t *testing.T) {
	rt := &fakeRuntime{}
	agg := newTestAggregator(rt, entrypoints(), echoProber())

	records, err := agg.GetStatus(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Zero(t, rt.introspections)
}

func TestGetStatusRuntimeFailuresAreFatal(t *testing.T) {
	t.Run("discovery", func(t *testing.T) {
		rt := fleet()
		rt.discoverErr = errDaemonDown
		_, err := newTestAggregator(rt, entrypoints(), echoProber()).GetStatus(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrRuntimeUnavailable)
	})
	t.Run("introspection", func(t *testing.T) {
		rt := fleet()
		rt.introspectErr = errDaemonDown
		_, err := newTestAggregator(rt, entrypoints(), echoProber()).GetStatus(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrRuntimeUnavailable)
	})
	t.Run("short batch", func(t *testing.T) {
		rt := fleet()
		rt.shortBatch = true
		_, err := newTestAggregator(rt, entrypoints(), echoProber()).GetStatus(context.Background(), nil)
		assert.ErrorIs(t, err, domain.ErrRuntimeUnavailable)
	})
}

func TestGetHealth(t *testing.T) {
	rt := fleet()
	rt.descs[1].Status = "Restarting (1) 3 seconds ago"
	prober := echoProber()
	agg := newTestAggregator(rt, entrypoints(), prober)

	health, err := agg.GetHealth(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, health, 3)
	assert.Equal(t, domain.HealthRecord{ID: 0, Name: "LLUSTR[0]", Port: 1080, Status: domain.StatusDown, Healthy: false}, health[0])
	assert.True(t, health[1].Healthy)
	assert.Zero(t, rt.introspections)
	assert.Zero(t, prober.calls.Load())

	summary := SummarizeHealth(health)
	assert.Equal(t, 2, summary.Healthy)
	assert.Equal(t, 3, summary.Count)

	one, err := agg.GetHealth(context.Background(), []domain.TunnelID{5})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, health[2], one[0])
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.NotNil(t, s.Tunnels)
	assert.Zero(t, s.Count)
	assert.Zero(t, s.TotalMemoryMB)
}
