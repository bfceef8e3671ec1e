// Package lifecycle drives the deployment's start.sh and stop.sh scripts.
// The scripts own container creation; this package only invokes them.
package lifecycle

import (
	"context"
	"path/filepath"

	"github.com/melih/tunnelwatch/internal/adapters/shell"
	"github.com/melih/tunnelwatch/internal/core/domain"
)

const (
	startScript = "start.sh"
	stopScript  = "stop.sh"
)

// Scripts implements ports.LifecycleController.
type Scripts struct {
	root   string
	runner shell.Runner
}

// NewScripts resolves root to an absolute path. exec evaluates a relative
// script path against the command's working directory, which is root.
func NewScripts(root string, runner shell.Runner) *Scripts {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Scripts{root: root, runner: runner}
}

func (s *Scripts) Start(ctx context.Context, target string, build, updateConfigs bool) (domain.CommandResult, error) {
	var args []string
	if build {
		args = append(args, "--build")
	}
	if updateConfigs {
		args = append(args, "--update-configs")
	}
	args = append(args, target)
	return s.runner.Run(ctx, s.root, filepath.Join(s.root, startScript), args...)
}

func (s *Scripts) Stop(ctx context.Context, target string) (domain.CommandResult, error) {
	return s.runner.Run(ctx, s.root, filepath.Join(s.root, stopScript), target)
}
