// Package docker implements the container runtime port using the Docker SDK.
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	units "github.com/docker/go-units"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/parse"
	"github.com/melih/tunnelwatch/internal/log"
)

// dockerAPI is the part of the SDK client the adapter uses.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerStatsOneShot(ctx context.Context, containerID string) (types.ContainerStats, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
}

// Options configures the SDK adapter.
type Options struct {
	IncludeStopped bool
	LogsTail       string
	MaxConcurrency int // bound on per-container calls during introspection
}

// Adapter implements ports.ContainerRuntime using the Docker SDK.
type Adapter struct {
	cli    dockerAPI
	naming parse.Naming
	opts   Options
	logger zerolog.Logger
}

// NewAdapter creates a Docker adapter from the environment. host overrides
// DOCKER_HOST when set.
func NewAdapter(host string, naming parse.Naming, opts Options) (*Adapter, error) {
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		clientOpts = append(clientOpts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newAdapter(cli, naming, opts), nil
}

func newAdapter(cli dockerAPI, naming parse.Naming, opts Options) *Adapter {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 16
	}
	return &Adapter{
		cli:    cli,
		naming: naming,
		opts:   opts,
		logger: log.WithComponent("runtime"),
	}
}

// Discover lists tunnel containers. A non-nil filter narrows the query to
// that tunnel's exact container name.
func (a *Adapter) Discover(ctx context.Context, filter *domain.TunnelID) ([]domain.ContainerDescriptor, error) {
	pattern := a.naming.Prefix()
	if filter != nil {
		pattern = "^/" + a.naming.ContainerName(*filter) + "$"
	}
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{
		All:     a.opts.IncludeStopped,
		Filters: filters.NewArgs(filters.Arg("name", pattern)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list containers: %w", domain.ErrRuntimeUnavailable, err)
	}

	var result []domain.ContainerDescriptor
	for _, c := range containers {
		name, id, ok := a.matchName(c.Names)
		if !ok {
			continue
		}
		result = append(result, domain.ContainerDescriptor{
			Handle:   c.ID,
			TunnelID: id,
			Name:     name,
			State:    c.State,
			Status:   c.Status,
			Ports:    formatPorts(c.Ports),
		})
	}
	return result, nil
}

// BatchIntrospect inspects every handle and takes one stats sample for
// each. A container that disappeared in between leaves its slot empty; any
// other daemon error fails the batch.
func (a *Adapter) BatchIntrospect(ctx context.Context, handles []string) ([]domain.Introspection, error) {
	out := make([]domain.Introspection, len(handles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.MaxConcurrency)
	for i, h := range handles {
		g.Go(func() error {
			info, err := a.cli.ContainerInspect(gctx, h)
			if client.IsErrNotFound(err) {
				a.logger.Debug().Str("container", h).Msg("container gone before inspect")
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: inspect %s: %w", domain.ErrRuntimeUnavailable, h, err)
			}
			if info.ContainerJSONBase != nil {
				out[i].CreatedAt = info.Created
			}

			usage, err := a.memoryUsage(gctx, h)
			if client.IsErrNotFound(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: stats %s: %w", domain.ErrRuntimeUnavailable, h, err)
			}
			out[i].MemoryUsage = usage
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Adapter) memoryUsage(ctx context.Context, handle string) (string, error) {
	stats, err := a.cli.ContainerStatsOneShot(ctx, handle)
	if err != nil {
		return "", err
	}
	defer stats.Body.Close()

	var v types.StatsJSON
	if err := json.NewDecoder(stats.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decode stats: %w", err)
	}
	return formatMemory(v.MemoryStats), nil
}

// FetchLogs returns the combined stdout and stderr of a container.
func (a *Adapter) FetchLogs(ctx context.Context, handle string) (string, error) {
	tail := a.opts.LogsTail
	if tail == "" {
		tail = "all"
	}
	rc, err := a.cli.ContainerLogs(ctx, handle, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch logs for %s: %w", handle, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read logs for %s: %w", handle, err)
	}

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, bytes.NewReader(raw)); err != nil {
		// TTY containers stream logs without multiplexing headers.
		return string(raw), nil
	}
	return buf.String(), nil
}

func (a *Adapter) matchName(names []string) (string, domain.TunnelID, bool) {
	for _, n := range names {
		if id, ok := a.naming.TunnelID(n); ok {
			return strings.TrimPrefix(n, "/"), id, true
		}
	}
	return "", 0, false
}

// formatPorts renders port bindings the way docker ps does, published
// bindings first.
func formatPorts(ports []types.Port) string {
	sorted := make([]types.Port, len(ports))
	copy(sorted, ports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublicPort != 0 && sorted[j].PublicPort == 0
	})

	parts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		private := fmt.Sprintf("%d/%s", p.PrivatePort, p.Type)
		if p.PublicPort == 0 {
			parts = append(parts, private)
			continue
		}
		host := net.JoinHostPort(p.IP, strconv.Itoa(int(p.PublicPort)))
		parts = append(parts, host+"->"+private)
	}
	return strings.Join(parts, ", ")
}

// formatMemory renders "<used> / <limit>" with page cache excluded from
// used, matching docker stats.
func formatMemory(m types.MemoryStats) string {
	used := m.Usage
	if v, ok := m.Stats["total_inactive_file"]; ok && v < used {
		used -= v
	} else if v, ok := m.Stats["inactive_file"]; ok && v < used {
		used -= v
	}
	return units.BytesSize(float64(used)) + " / " + units.BytesSize(float64(m.Limit))
}
