package hcx

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts validations and per-phase work using atomics.
// All methods are safe for concurrent use.
type Metrics struct {
	validationsTotal atomic.Uint64
	validationsValid atomic.Uint64

	// nanoseconds
	validationTimeTotal atomic.Uint64
	validationTimeMax   atomic.Uint64

	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64

	phases sync.Map // map[string]*phaseMetrics
}

type phaseMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64
	issuesFound atomic.Uint64
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordValidation records one finished validation.
func (m *Metrics) RecordValidation(duration time.Duration, valid bool) {
	m.validationsTotal.Add(1)
	if valid {
		m.validationsValid.Add(1)
	}

	ns := uint64(max(duration.Nanoseconds(), 0))
	m.validationTimeTotal.Add(ns)
	for {
		old := m.validationTimeMax.Load()
		if ns <= old || m.validationTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordIssue counts an issue by severity.
func (m *Metrics) RecordIssue(severity IssueSeverity) {
	switch severity {
	case SeverityError, SeverityFatal:
		m.errorsTotal.Add(1)
	case SeverityWarning:
		m.warningsTotal.Add(1)
	}
}

// RecordPhase records one run of a validation phase.
func (m *Metrics) RecordPhase(name string, duration time.Duration, issuesFound int) {
	v, _ := m.phases.LoadOrStore(name, &phaseMetrics{})
	pm := v.(*phaseMetrics)
	pm.invocations.Add(1)
	pm.totalTime.Add(uint64(max(duration.Nanoseconds(), 0)))
	pm.issuesFound.Add(uint64(max(issuesFound, 0)))
}

func (m *Metrics) ValidationsTotal() uint64 { return m.validationsTotal.Load() }
func (m *Metrics) ValidationsValid() uint64 { return m.validationsValid.Load() }
func (m *Metrics) ErrorsTotal() uint64      { return m.errorsTotal.Load() }
func (m *Metrics) WarningsTotal() uint64    { return m.warningsTotal.Load() }

// AverageValidationTime returns zero before the first validation.
func (m *Metrics) AverageValidationTime() time.Duration {
	total := m.validationsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.validationTimeTotal.Load() / total)
}

func (m *Metrics) MaxValidationTime() time.Duration {
	return time.Duration(m.validationTimeMax.Load())
}

// PhaseStats summarises one phase.
type PhaseStats struct {
	Name        string        `json:"name"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"totalTime"`
	IssuesFound uint64        `json:"issuesFound"`
}

// AllPhaseStats returns per-phase stats ordered by name.
func (m *Metrics) AllPhaseStats() []PhaseStats {
	var out []PhaseStats
	m.phases.Range(func(k, v any) bool {
		pm := v.(*phaseMetrics)
		out = append(out, PhaseStats{
			Name:        k.(string),
			Invocations: pm.invocations.Load(),
			TotalTime:   time.Duration(pm.totalTime.Load()),
			IssuesFound: pm.issuesFound.Load(),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ValidationsTotal      uint64        `json:"validationsTotal"`
	ValidationsValid      uint64        `json:"validationsValid"`
	AverageValidationTime time.Duration `json:"averageValidationTime"`
	MaxValidationTime     time.Duration `json:"maxValidationTime"`
	ErrorsTotal           uint64        `json:"errorsTotal"`
	WarningsTotal         uint64        `json:"warningsTotal"`
	Phases                []PhaseStats  `json:"phases,omitempty"`
}

func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		ValidationsTotal:      m.ValidationsTotal(),
		ValidationsValid:      m.ValidationsValid(),
		AverageValidationTime: m.AverageValidationTime(),
		MaxValidationTime:     m.MaxValidationTime(),
		ErrorsTotal:           m.ErrorsTotal(),
		WarningsTotal:         m.WarningsTotal(),
		Phases:                m.AllPhaseStats(),
	}
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	m.validationsTotal.Store(0)
	m.validationsValid.Store(0)
	m.validationTimeTotal.Store(0)
	m.validationTimeMax.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.phases.Range(func(k, _ any) bool {
		m.phases.Delete(k)
		return true
	})
}
