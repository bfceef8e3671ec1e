package ports

import (
	"context"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

// EntrypointLookup derives a tunnel's entrypoint from its configuration
// artifact. found is false when no artifact exists for the id.
type EntrypointLookup interface {
	Lookup(ctx context.Context, id domain.TunnelID) (fact domain.EntrypointFact, found bool, err error)
}

// ExitProber observes the exit point of a tunnel through its local proxy
// port. It never fails: unresolved facts come back as Unknown.
type ExitProber interface {
	Probe(ctx context.Context, port domain.Port) domain.ExitPointFact
}

// LifecycleController starts and stops tunnels. It is owned by the
// deployment scripts, not by this service.
type LifecycleController interface {
	// Start starts one tunnel ("3") or a range ("0-4").
	Start(ctx context.Context, target string, build, updateConfigs bool) (domain.CommandResult, error)
	// Stop stops one tunnel or "all".
	Stop(ctx context.Context, target string) (domain.CommandResult, error)
}
