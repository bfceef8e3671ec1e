// Package dockercli implements the container runtime port on top of the
// docker command line. It is the fallback for hosts where the daemon socket
// is not reachable from this process but the CLI is configured (contexts,
// remote hosts).
package dockercli

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/melih/tunnelwatch/internal/adapters/shell"
	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/parse"
	"github.com/melih/tunnelwatch/internal/log"
)

const (
	psFormat      = "{{.ID}}|{{.Names}}|{{.State}}|{{.Status}}|{{.Ports}}"
	inspectFormat = "{{.Id}}|{{.Created}}"
	statsFormat   = "{{.ID}}|{{.MemUsage}}"
)

// Options configures the CLI adapter.
type Options struct {
	Binary         string // defaults to "docker"
	IncludeStopped bool
	LogsTail       string
}

// Adapter implements ports.ContainerRuntime by shelling out to docker.
type Adapter struct {
	runner shell.Runner
	naming parse.Naming
	opts   Options
	logger zerolog.Logger
}

func NewAdapter(runner shell.Runner, naming parse.Naming, opts Options) *Adapter {
	if opts.Binary == "" {
		opts.Binary = "docker"
	}
	return &Adapter{
		runner: runner,
		naming: naming,
		opts:   opts,
		logger: log.WithComponent("runtime"),
	}
}

func (a *Adapter) docker(ctx context.Context, args ...string) (string, error) {
	return a.run(ctx, false, args...)
}

// run executes docker. With tolerateMissing, a non-zero exit caused only by
// containers that no longer exist is not an error; the rows docker did print
// for the others are returned.
func (a *Adapter) run(ctx context.Context, tolerateMissing bool, args ...string) (string, error) {
	res, err := a.runner.Run(ctx, "", a.opts.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("%w: docker %s: %w", domain.ErrRuntimeUnavailable, args[0], err)
	}
	if res.ExitCode != 0 && tolerateMissing && onlyMissing(res.Stderr) {
		a.logger.Debug().Str("stderr", strings.TrimSpace(res.Stderr)).Msgf("docker %s skipped vanished containers", args[0])
		return res.Stdout, nil
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: docker %s exited %d: %s",
			domain.ErrRuntimeUnavailable, args[0], res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// Discover runs docker ps filtered by the naming convention.
func (a *Adapter) Discover(ctx context.Context, filter *domain.TunnelID) ([]domain.ContainerDescriptor, error) {
	args := []string{"ps"}
	if a.opts.IncludeStopped {
		args = append(args, "--all")
	}
	args = append(args, "--filter", "name="+nameFilter(a.naming, filter), "--format", psFormat)

	out, err := a.docker(ctx, args...)
	if err != nil {
		return nil, err
	}

	var descs []domain.ContainerDescriptor
	for _, line := range splitLines(out) {
		parts := strings.SplitN(line, "|", 5)
		if len(parts) < 5 {
			a.logger.Debug().Str("line", line).Msg("skipping malformed ps row")
			continue
		}
		name, id, ok := a.matchName(strings.Split(parts[1], ","))
		if !ok {
			continue
		}
		descs = append(descs, domain.ContainerDescriptor{
			Handle:   parts[0],
			TunnelID: id,
			Name:     name,
			State:    parts[2],
			Status:   parts[3],
			Ports:    parts[4],
		})
	}
	return descs, nil
}

// BatchIntrospect runs one docker inspect for all handles, then one docker
// stats for the handles inspect still found. Output rows are matched back to
// handles by container id because docker stats does not preserve argument
// order. A container removed since discovery leaves its slot empty.
func (a *Adapter) BatchIntrospect(ctx context.Context, handles []string) ([]domain.Introspection, error) {
	out := make([]domain.Introspection, len(handles))
	if len(handles) == 0 {
		return out, nil
	}

	stdout, err := a.run(ctx, true, append([]string{"inspect", "--format", inspectFormat}, handles...)...)
	if err != nil {
		return nil, err
	}
	created := parseRows(stdout)

	var present []string
	for i, h := range handles {
		out[i].CreatedAt = lookupByID(created, h)
		if out[i].CreatedAt != "" {
			present = append(present, h)
		}
	}
	if len(present) == 0 {
		return out, nil
	}

	stdout, err = a.run(ctx, true, append([]string{"stats", "--no-stream", "--format", statsFormat}, present...)...)
	if err != nil {
		return nil, err
	}
	memory := parseRows(stdout)
	for i, h := range handles {
		out[i].MemoryUsage = lookupByID(memory, h)
	}
	return out, nil
}

func (a *Adapter) FetchLogs(ctx context.Context, handle string) (string, error) {
	args := []string{"logs"}
	if a.opts.LogsTail != "" && a.opts.LogsTail != "all" {
		args = append(args, "--tail", a.opts.LogsTail)
	}
	args = append(args, handle)

	res, err := a.runner.Run(ctx, "", a.opts.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("docker logs %s: %w", handle, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("docker logs %s exited %d: %s", handle, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	// docker logs replays the container's stderr on its own stderr.
	return res.Stdout + res.Stderr, nil
}

func (a *Adapter) matchName(names []string) (string, domain.TunnelID, bool) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if id, ok := a.naming.TunnelID(n); ok {
			return n, id, true
		}
	}
	return "", 0, false
}

// nameFilter builds the value of a docker "name" filter. Repeated name
// filters are OR-ed by docker, so a single anchored pattern is used to
// narrow to one tunnel.
func nameFilter(naming parse.Naming, filter *domain.TunnelID) string {
	if filter == nil {
		return naming.Prefix()
	}
	return "^/" + naming.ContainerName(*filter) + "$"
}

// onlyMissing reports whether every line of stderr is docker's message for
// an unknown container.
func onlyMissing(stderr string) bool {
	lines := splitLines(stderr)
	if len(lines) == 0 {
		return false
	}
	for _, l := range lines {
		if !strings.Contains(l, "No such object") && !strings.Contains(l, "No such container") {
			return false
		}
	}
	return true
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// parseRows turns "id|value" lines into a map keyed by id.
func parseRows(s string) map[string]string {
	rows := make(map[string]string)
	for _, l := range splitLines(s) {
		id, value, ok := strings.Cut(l, "|")
		if ok && id != "" {
			rows[id] = strings.TrimSpace(value)
		}
	}
	return rows
}

// lookupByID finds the row for handle. Either side may be a truncated id.
func lookupByID(rows map[string]string, handle string) string {
	if v, ok := rows[handle]; ok {
		return v
	}
	for id, v := range rows {
		if strings.HasPrefix(id, handle) || strings.HasPrefix(handle, id) {
			return v
		}
	}
	return ""
}
