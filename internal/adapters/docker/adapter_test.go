package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/parse"
)

type fakeClient struct {
	mu         sync.Mutex
	containers []types.Container
	listErr    error
	listOpts   container.ListOptions
	created    map[string]string
	stats      map[string]string // raw stats JSON
	logs       map[string][]byte
	inspectErr error
}

func (f *fakeClient) ContainerList(_ context.Context, opts container.ListOptions) ([]types.Container, error) {
	f.mu.Lock()
	f.listOpts = opts
	f.mu.Unlock()
	return f.containers, f.listErr
}

func (f *fakeClient) ContainerInspect(_ context.Context, id string) (types.ContainerJSON, error) {
	if f.inspectErr != nil {
		return types.ContainerJSON{}, f.inspectErr
	}
	created, ok := f.created[id]
	if !ok {
		return types.ContainerJSON{}, errdefs.NotFound(fmt.Errorf("no such container: %s", id))
	}
	return types.ContainerJSON{ContainerJSONBase: &types.ContainerJSONBase{ID: id, Created: created}}, nil
}

func (f *fakeClient) ContainerStatsOneShot(_ context.Context, id string) (types.ContainerStats, error) {
	body, ok := f.stats[id]
	if !ok {
		return types.ContainerStats{}, errdefs.NotFound(fmt.Errorf("no such container: %s", id))
	}
	return types.ContainerStats{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeClient) ContainerLogs(_ context.Context, id string, _ container.LogsOptions) (io.ReadCloser, error) {
	raw, ok := f.logs[id]
	if !ok {
		return nil, errdefs.NotFound(fmt.Errorf("no such container: %s", id))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func newTestAdapter(f *fakeClient) *Adapter {
	return newAdapter(f, parse.NewNaming("llustr-proxy-tunnel-"), Options{MaxConcurrency: 2})
}

func TestDiscover(t *testing.T) {
	f := &fakeClient{containers: []types.Container{
		{
			ID: "aaa", Names: []string{"/llustr-proxy-tunnel-3"}, State: "running", Status: "Up 2 hours",
			Ports: []types.Port{
				{PrivatePort: 8080, Type: "tcp"},
				{IP: "0.0.0.0", PrivatePort: 1080, PublicPort: 1083, Type: "tcp"},
				{IP: "::", PrivatePort: 1080, PublicPort: 1083, Type: "tcp"},
			},
		},
		{ID: "bbb", Names: []string{"/llustr-proxy-tunnel-3-old"}, State: "exited", Status: "Exited (0)"},
	}}

	descs, err := newTestAdapter(f).Discover(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, domain.ContainerDescriptor{
		Handle: "aaa", TunnelID: 3, Name: "llustr-proxy-tunnel-3", State: "running", Status: "Up 2 hours",
		Ports: "0.0.0.0:1083->1080/tcp, [::]:1083->1080/tcp, 8080/tcp",
	}, descs[0])
	assert.Equal(t, domain.Port(1083), parse.HostPort(descs[0].Ports))

	assert.False(t, f.listOpts.All)
	assert.Equal(t, []string{"llustr-proxy-tunnel-"}, f.listOpts.Filters.Get("name"))
}

func TestDiscoverSingleTunnel(t *testing.T) {
	f := &fakeClient{}
	id := domain.TunnelID(12)
	_, err := newTestAdapter(f).Discover(context.Background(), &id)
	require.NoError(t, err)
	assert.Equal(t, []string{"^/llustr-proxy-tunnel-12$"}, f.listOpts.Filters.Get("name"))
}

func TestDiscoverDaemonDown(t *testing.T) {
	f := &fakeClient{listErr: errors.New("Cannot connect to the Docker daemon")}
	_, err := newTestAdapter(f).Discover(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrRuntimeUnavailable)
}

func TestBatchIntrospect(t *testing.T) {
	f := &fakeClient{
		created: map[string]string{
			"aaa": "2025-05-26T13:07:54.214207407Z",
			"bbb": "2025-05-27T10:00:00Z",
		},
		stats: map[string]string{
			// 600MiB usage with 88MiB inactive page cache, 2GiB limit
			"aaa": `{"memory_stats":{"usage":629145600,"limit":2147483648,"stats":{"inactive_file":92274688}}}`,
		},
	}

	facts, err := newTestAdapter(f).BatchIntrospect(context.Background(), []string{"aaa", "bbb", "gone"})
	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.Equal(t, domain.Introspection{CreatedAt: "2025-05-26T13:07:54.214207407Z", MemoryUsage: "512MiB / 2GiB"}, facts[0])
	assert.Equal(t, domain.Introspection{CreatedAt: "2025-05-27T10:00:00Z"}, facts[1])
	assert.Equal(t, domain.Introspection{}, facts[2])
	assert.InDelta(t, 512.0, parse.MemoryMB(facts[0].MemoryUsage), 1e-9)
}

func TestBatchIntrospectDaemonError(t *testing.T) {
	f := &fakeClient{inspectErr: errors.New("connection reset")}
	_, err := newTestAdapter(f).BatchIntrospect(context.Background(), []string{"aaa"})
	assert.ErrorIs(t, err, domain.ErrRuntimeUnavailable)
}

func TestFetchLogs(t *testing.T) {
	var muxed bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&muxed, stdcopy.Stdout).Write([]byte("booting\n"))
	_, _ = stdcopy.NewStdWriter(&muxed, stdcopy.Stderr).Write([]byte("Connected to VPN server: us42.nordvpn.com\n"))

	f := &fakeClient{logs: map[string][]byte{
		"aaa": muxed.Bytes(),
		"tty": []byte("Connected to VPN server de7.nordvpn.com\n"),
	}}
	a := newTestAdapter(f)

	logs, err := a.FetchLogs(context.Background(), "aaa")
	require.NoError(t, err)
	assert.Equal(t, "booting\nConnected to VPN server: us42.nordvpn.com\n", logs)
	assert.Equal(t, "us42.nordvpn.com", parse.VPNServer(logs))

	logs, err = a.FetchLogs(context.Background(), "tty")
	require.NoError(t, err)
	assert.Equal(t, "de7.nordvpn.com", parse.VPNServer(logs))

	_, err = a.FetchLogs(context.Background(), "missing")
	assert.Error(t, err)
}

func TestFormatMemory(t *testing.T) {
	assert.Equal(t, "1.5GiB / 4GiB", formatMemory(types.MemoryStats{
		Usage: 3 << 29, Limit: 4 << 30,
		Stats: map[string]uint64{"total_inactive_file": 1 << 40}, // larger than usage, ignored
	}))
	assert.Equal(t, "0B / 0B", formatMemory(types.MemoryStats{}))
}
