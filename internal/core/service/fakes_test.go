package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/melih/tunnelwatch/internal/core/domain"
)

type fakeRuntime struct {
	mu            sync.Mutex
	descs         []domain.ContainerDescriptor
	intro         map[string]domain.Introspection
	logs          map[string]string
	logErr        map[string]error
	discoverErr   error
	introspectErr error
	shortBatch    bool

	filters        []*domain.TunnelID
	introspections int
}

func (f *fakeRuntime) Discover(_ context.Context, filter *domain.TunnelID) ([]domain.ContainerDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	var out []domain.ContainerDescriptor
	for _, d := range f.descs {
		if filter == nil || d.TunnelID == *filter {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRuntime) BatchIntrospect(_ context.Context, handles []string) ([]domain.Introspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.introspections++
	if f.introspectErr != nil {
		return nil, f.introspectErr
	}
	out := make([]domain.Introspection, 0, len(handles))
	for _, h := range handles {
		out = append(out, f.intro[h])
	}
	if f.shortBatch {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeRuntime) FetchLogs(_ context.Context, handle string) (string, error) {
	if err := f.logErr[handle]; err != nil {
		return "", err
	}
	return f.logs[handle], nil
}

type fakeProber struct {
	calls atomic.Int32
	probe func(port domain.Port) domain.ExitPointFact
}

func (p *fakeProber) Probe(_ context.Context, port domain.Port) domain.ExitPointFact {
	p.calls.Add(1)
	return p.probe(port)
}

type fakeLookup struct {
	calls atomic.Int32
	facts map[domain.TunnelID]domain.EntrypointFact
	err   error
}

func (l *fakeLookup) Lookup(_ context.Context, id domain.TunnelID) (domain.EntrypointFact, bool, error) {
	l.calls.Add(1)
	if l.err != nil {
		return domain.EntrypointFact{}, false, l.err
	}
	f, ok := l.facts[id]
	return f, ok, nil
}

type fakeController struct {
	calls  []string
	start  domain.CommandResult
	stop   domain.CommandResult
	err    error
	onStop func()
}

func (c *fakeController) Start(_ context.Context, target string, build, updateConfigs bool) (domain.CommandResult, error) {
	c.calls = append(c.calls, fmt.Sprintf("start %s build=%t update=%t", target, build, updateConfigs))
	return c.start, c.err
}

func (c *fakeController) Stop(_ context.Context, target string) (domain.CommandResult, error) {
	c.calls = append(c.calls, "stop "+target)
	if c.onStop != nil {
		c.onStop()
	}
	return c.stop, c.err
}

var errDaemonDown = fmt.Errorf("%w: cannot connect to the Docker daemon", domain.ErrRuntimeUnavailable)

