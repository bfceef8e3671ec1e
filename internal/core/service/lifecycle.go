package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/melih/tunnelwatch/internal/core/domain"
	"github.com/melih/tunnelwatch/internal/core/ports"
	"github.com/melih/tunnelwatch/internal/log"
)

var (
	startTarget = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)
	stopTarget  = regexp.MustCompile(`^(?:\d+|all)$`)
)

// Lifecycle validates operator requests and forwards them to the lifecycle
// controller. Non-zero exits become *domain.CommandError with the captured
// output intact.
type Lifecycle struct {
	controller ports.LifecycleController
	grace      time.Duration
	logger     zerolog.Logger
}

func NewLifecycle(controller ports.LifecycleController, grace time.Duration) *Lifecycle {
	return &Lifecycle{
		controller: controller,
		grace:      grace,
		logger:     log.WithComponent("lifecycle"),
	}
}

// Start starts one tunnel ("3") or an inclusive range ("0-4").
func (l *Lifecycle) Start(ctx context.Context, target string, build, updateConfigs bool) (domain.CommandResult, error) {
	if err := validateStartTarget(target); err != nil {
		return domain.CommandResult{}, err
	}
	l.logger.Info().Str("target", target).Bool("build", build).Bool("update_configs", updateConfigs).Msg("starting tunnels")
	res, err := l.controller.Start(ctx, target, build, updateConfigs)
	return checkResult("start "+target, res, err)
}

// Stop stops one tunnel or "all".
func (l *Lifecycle) Stop(ctx context.Context, target string) (domain.CommandResult, error) {
	if !stopTarget.MatchString(target) {
		return domain.CommandResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidTarget, target)
	}
	l.logger.Info().Str("target", target).Msg("stopping tunnels")
	res, err := l.controller.Stop(ctx, target)
	return checkResult("stop "+target, res, err)
}

// Replace stops stopID, waits for the grace period so the port is released,
// then starts startID. A failed stop aborts before anything is started.
func (l *Lifecycle) Replace(ctx context.Context, stopID, startID domain.TunnelID) (domain.ReplaceResult, error) {
	var out domain.ReplaceResult
	if stopID < 0 || startID < 0 {
		return out, fmt.Errorf("%w: negative tunnel id", domain.ErrInvalidTarget)
	}

	stopRes, err := l.Stop(ctx, strconv.Itoa(int(stopID)))
	out.Stop = stopRes
	if err != nil {
		return out, err
	}

	if l.grace > 0 {
		t := time.NewTimer(l.grace)
		select {
		case <-ctx.Done():
			t.Stop()
			return out, ctx.Err()
		case <-t.C:
		}
	}

	startRes, err := l.Start(ctx, strconv.Itoa(int(startID)), false, false)
	out.Start = startRes
	return out, err
}

func validateStartTarget(target string) error {
	m := startTarget.FindStringSubmatch(target)
	if m == nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidTarget, target)
	}
	if m[2] != "" {
		from, err1 := strconv.Atoi(m[1])
		to, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || from > to {
			return fmt.Errorf("%w: %q", domain.ErrInvalidTarget, target)
		}
	}
	return nil
}

func checkResult(op string, res domain.CommandResult, err error) (domain.CommandResult, error) {
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	if res.ExitCode != 0 {
		return res, &domain.CommandError{Op: op, CommandResult: res}
	}
	return res, nil
}
