package main

import (
	"fmt"
	"io"

	"github.com/melih/tunnelwatch/internal/adapters/docker"
	"github.com/melih/tunnelwatch/internal/adapters/dockercli"
	"github.com/melih/tunnelwatch/internal/adapters/entrypoint"
	"github.com/melih/tunnelwatch/internal/adapters/lifecycle"
	"github.com/melih/tunnelwatch/internal/adapters/prober"
	"github.com/melih/tunnelwatch/internal/adapters/shell"
	"github.com/melih/tunnelwatch/internal/config"
	"github.com/melih/tunnelwatch/internal/core/parse"
	"github.com/melih/tunnelwatch/internal/core/ports"
	"github.com/melih/tunnelwatch/internal/core/service"
	"github.com/melih/tunnelwatch/internal/log"
)

type services struct {
	status    *service.Aggregator
	lifecycle *service.Lifecycle
}

// setup loads settings, initializes logging and wires every adapter.
func setup(logOutput io.Writer) (config.Settings, *services, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		Output:     logOutput,
	})

	runtime, err := newRuntime(cfg)
	if err != nil {
		return cfg, nil, err
	}
	probe, err := prober.New(prober.Config{
		Host:      cfg.ProbeHost,
		Timeout:   cfg.ProbeTimeout,
		IPURL:     cfg.ProbeIPURL,
		GeoURL:    cfg.ProbeGeoURL,
		Transport: cfg.ProbeTransport,
	})
	if err != nil {
		return cfg, nil, err
	}

	cache := service.NewEntrypointCache(entrypoint.NewArtifacts(cfg.ConfigsDir, cfg.ArtifactSuffix, cfg.ProviderDomain))
	aggregator := service.NewAggregator(runtime, cache, probe, service.Options{
		DisplayPrefix:  cfg.DisplayPrefix,
		MaxConcurrency: cfg.MaxConcurrency,
	})
	lc := service.NewLifecycle(lifecycle.NewScripts(cfg.RootDir, shell.Exec{}), cfg.ReplaceGrace)

	return cfg, &services{status: aggregator, lifecycle: lc}, nil
}

func newRuntime(cfg config.Settings) (ports.ContainerRuntime, error) {
	naming := parse.NewNaming(cfg.ContainerPrefix)
	switch cfg.RuntimeBackend {
	case "cli":
		return dockercli.NewAdapter(shell.Exec{}, naming, dockercli.Options{
			IncludeStopped: cfg.IncludeStopped,
			LogsTail:       cfg.LogsTail,
		}), nil
	case "sdk":
		a, err := docker.NewAdapter(cfg.DockerHost, naming, docker.Options{
			IncludeStopped: cfg.IncludeStopped,
			LogsTail:       cfg.LogsTail,
			MaxConcurrency: cfg.MaxConcurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Docker adapter: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown runtime backend %q", cfg.RuntimeBackend)
	}
}
