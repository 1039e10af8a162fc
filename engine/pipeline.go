package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/phase"
)

// Priority orders phase groups. Lower runs first; phases sharing a
// priority run in parallel.
type Priority int

const (
	PriorityFirst  Priority = 0
	PriorityNormal Priority = 50
	PriorityLast   Priority = 100
)

type registration struct {
	phase    phase.Phase
	priority Priority
}

type group struct {
	priority Priority
	phases   []phase.Phase
}

// pipeline runs phases group by group, stopping early once MaxErrors is
// reached or the context is done.
type pipeline struct {
	mu     sync.RWMutex
	regs   []registration
	groups []group

	parallel bool
	metrics  *hcx.Metrics
}

func newPipeline(parallel bool, metrics *hcx.Metrics) *pipeline {
	return &pipeline{parallel: parallel, metrics: metrics}
}

func (p *pipeline) register(ph phase.Phase, priority Priority) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs = append(p.regs, registration{phase: ph, priority: priority})
	p.rebuild()
}

// rebuild must be called with mu held.
func (p *pipeline) rebuild() {
	byPriority := make(map[Priority][]phase.Phase)
	for _, r := range p.regs {
		byPriority[r.priority] = append(byPriority[r.priority], r.phase)
	}
	priorities := make([]Priority, 0, len(byPriority))
	for pr := range byPriority {
		priorities = append(priorities, pr)
	}
	sort.Slice(priorities, func(i, j int) bool { return priorities[i] < priorities[j] })

	p.groups = p.groups[:0]
	for _, pr := range priorities {
		p.groups = append(p.groups, group{priority: pr, phases: byPriority[pr]})
	}
}

func (p *pipeline) phaseNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var names []string
	for _, g := range p.groups {
		for _, ph := range g.phases {
			names = append(names, ph.Name())
		}
	}
	return names
}

func (p *pipeline) execute(ctx context.Context, pctx *phase.Context, result *hcx.Result) {
	p.mu.RLock()
	groups := p.groups
	p.mu.RUnlock()

	maxErrors := pctx.Opts().MaxErrors
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			result.AddIssue(hcx.NewIssue(hcx.SeverityError, hcx.IssueTypeProcessing).
				Diagnostics("Validation cancelled: " + err.Error()).
				Build())
			return
		}
		if maxErrors > 0 && result.ErrorCount() >= maxErrors {
			return
		}

		if p.parallel && len(g.phases) > 1 {
			p.executeParallel(ctx, pctx, result, g.phases)
			continue
		}
		for _, ph := range g.phases {
			result.AddIssues(p.executePhase(ctx, pctx, ph))
		}
	}
}

func (p *pipeline) executeParallel(ctx context.Context, pctx *phase.Context, result *hcx.Result, phases []phase.Phase) {
	// Issues are collected per slot so results keep registration order.
	collected := make([][]hcx.Issue, len(phases))
	var wg sync.WaitGroup
	for i, ph := range phases {
		wg.Add(1)
		go func(i int, ph phase.Phase) {
			defer wg.Done()
			collected[i] = p.executePhase(ctx, pctx, ph)
		}(i, ph)
	}
	wg.Wait()

	for _, issues := range collected {
		result.AddIssues(issues)
	}
}

func (p *pipeline) executePhase(ctx context.Context, pctx *phase.Context, ph phase.Phase) []hcx.Issue {
	start := time.Now()
	issues := ph.Validate(ctx, pctx)
	if p.metrics != nil {
		p.metrics.RecordPhase(ph.Name(), time.Since(start), len(issues))
	}
	return issues
}
