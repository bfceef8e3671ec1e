package service

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/ports"
	"github.com/melih/tunnelwatch/internal/log"
	"github.com/melih/tunnelwatch/internal/metrics"
)

// EntrypointCache memoizes entrypoint facts per tunnel id for the life of
// the process. Entries never expire; a restart is the only way to pick up a
// changed artifact. Misses (no artifact yet) are not stored.
type EntrypointCache struct {
	lookup  ports.EntrypointLookup
	entries sync.Map // domain.TunnelID -> domain.EntrypointFact
	size    atomic.Int64
	logger  zerolog.Logger
}

func NewEntrypointCache(lookup ports.EntrypointLookup) *EntrypointCache {
	return &EntrypointCache{
		lookup: lookup,
		logger: log.WithComponent("entrypoint"),
	}
}

// Resolve returns the cached fact for id, computing it on first use.
// Concurrent callers may compute the same fact twice; the lookup is a pure
// function of on-disk state so either result is kept.
func (c *EntrypointCache) Resolve(ctx context.Context, id domain.TunnelID) domain.EntrypointFact {
	if v, ok := c.entries.Load(id); ok {
		return v.(domain.EntrypointFact)
	}

	logger := log.WithTunnel(c.logger, int(id))
	fact, found, err := c.lookup.Lookup(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("entrypoint lookup failed")
		return domain.UnknownEntrypoint
	}
	if !found {
		logger.Debug().Msg("no configuration artifact")
		return domain.UnknownEntrypoint
	}

	if _, loaded := c.entries.LoadOrStore(id, fact); !loaded {
		metrics.EntrypointCacheEntries.Set(float64(c.size.Add(1)))
	}
	return fact
}

// Len reports how many facts are cached.
func (c *EntrypointCache) Len() int {
	return int(c.size.Load())
}
