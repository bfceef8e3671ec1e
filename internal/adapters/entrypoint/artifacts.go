// Package entrypoint resolves a tunnel's ingress from its configuration
// artifact on disk.
package entrypoint

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/parse"
	"github.com/melih/tunnelwatch/internal/log"
)

// Artifacts implements ports.EntrypointLookup over a directory of
// "<NNN>-<cc><rest>.<provider-domain><suffix>" files.
type Artifacts struct {
	dir    string
	suffix string
	names  parse.ArtifactNames
	logger zerolog.Logger
}

func NewArtifacts(dir, suffix, providerDomain string) *Artifacts {
	return &Artifacts{
		dir:    dir,
		suffix: suffix,
		names:  parse.NewArtifactNames(providerDomain),
		logger: log.WithComponent("entrypoint"),
	}
}

// Lookup finds the artifact for id. When several match, the
// lexicographically first wins.
func (a *Artifacts) Lookup(_ context.Context, id domain.TunnelID) (domain.EntrypointFact, bool, error) {
	pattern := filepath.Join(a.dir, id.Padded()+"-*"+a.suffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return domain.UnknownEntrypoint, false, fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return domain.UnknownEntrypoint, false, nil
	}
	sort.Strings(matches)
	path := matches[0]
	if len(matches) > 1 {
		logger := log.WithTunnel(a.logger, int(id))
		logger.Debug().Strs("matches", matches).Msg("multiple artifacts, using first")
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.UnknownEntrypoint, false, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	fact := domain.EntrypointFact{
		Location: a.names.Location(filepath.Base(path)),
		Address:  domain.Unknown,
	}
	if addr, ok := parse.RemoteAddress(f); ok {
		fact.Address = addr
	}
	return fact, true, nil
}
