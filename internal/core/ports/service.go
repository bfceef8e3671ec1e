package ports

import (
	"context"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

// StatusService answers fleet status queries. Inbound adapters (HTTP, CLI)
// depend on this rather than on the aggregator directly.
type StatusService interface {
	GetStatus(ctx context.Context, ids []domain.TunnelID) ([]domain.TunnelRecord, error)
	GetHealth(ctx context.Context, ids []domain.TunnelID) ([]domain.HealthRecord, error)
}

// TunnelLifecycle is the operator-facing lifecycle API.
type TunnelLifecycle interface {
	Start(ctx context.Context, target string, build, updateConfigs bool) (domain.CommandResult, error)
	Stop(ctx context.Context, target string) (domain.CommandResult, error)
	Replace(ctx context.Context, stopID, startID domain.TunnelID) (domain.ReplaceResult, error)
}
