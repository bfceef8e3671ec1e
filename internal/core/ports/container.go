package ports

import (
	"context"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

// ContainerRuntime is the read-only view of the container runtime that backs
// the tunnel fleet. Implementations exist for the Docker SDK and the docker
// CLI, so the aggregator does not depend on either.
type ContainerRuntime interface {
	// Discover lists tunnel containers. A nil filter returns the whole fleet.
	// Containers whose names do not follow the naming convention are skipped.
	Discover(ctx context.Context, filter *domain.TunnelID) ([]domain.ContainerDescriptor, error)

	// BatchIntrospect returns creation time and memory usage for every handle,
	// in the order the handles were given. An error means the runtime is
	// unreachable and fails the whole query.
	BatchIntrospect(ctx context.Context, handles []string) ([]domain.Introspection, error)

	// FetchLogs returns the combined log output of one container.
	FetchLogs(ctx context.Context, handle string) (string, error)
}
