// Package scan plans and drives security assessments: it turns a scan
// profile into a dependency-ordered task graph and runs each phase
// behind the guard stack. Phase operations themselves are supplied by
// the caller; this package owns ordering, pacing, retries and
// bookkeeping, not scan semantics.
package scan

import (
	"fmt"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

// Phase identifies one stage of an assessment.
type Phase string

const (
	PhaseRecon      Phase = "reconnaissance"
	PhasePortScan   Phase = "port_scan"
	PhaseWebScan    Phase = "web_scan"
	PhaseVulnScan   Phase = "vulnerability_scan"
	PhaseAIAnalysis Phase = "ai_analysis"
	PhaseExploitGen Phase = "exploit_generation"
)

// Phases returns every phase in canonical execution order.
func Phases() []Phase {
	return []Phase{
		PhaseRecon,
		PhasePortScan,
		PhaseWebScan,
		PhaseVulnScan,
		PhaseAIAnalysis,
		PhaseExploitGen,
	}
}

// ParsePhase resolves a phase name from a profile file.
func ParsePhase(name string) (Phase, error) {
	p := Phase(name)
	switch p {
	case PhaseRecon, PhasePortScan, PhaseWebScan, PhaseVulnScan, PhaseAIAnalysis, PhaseExploitGen:
		return p, nil
	default:
		return "", fmt.Errorf("scan: unknown phase %q", name)
	}
}

func (p Phase) String() string { return string(p) }

// Weight is the phase's share of overall progress, in percent. The
// weights of all six phases sum to 100.
func (p Phase) Weight() int {
	switch p {
	case PhaseRecon:
		return 15
	case PhasePortScan:
		return 20
	case PhaseWebScan:
		return 20
	case PhaseVulnScan:
		return 25
	case PhaseAIAnalysis:
		return 15
	case PhaseExploitGen:
		return 5
	default:
		return 0
	}
}

// Service names the external service a phase calls, which selects the
// breaker and limiter guarding it.
func (p Phase) Service() string {
	switch p {
	case PhasePortScan:
		return defaults.ServiceNmap
	case PhaseVulnScan:
		return defaults.ServiceNuclei
	case PhaseAIAnalysis, PhaseExploitGen:
		return defaults.ServiceOpenAI
	case PhaseRecon, PhaseWebScan:
		return defaults.ServiceHTTP
	default:
		return defaults.ServiceUnknown
	}
}

// CPUIntensive marks phases that run local analysis rather than remote
// probing. They count against the scheduler's CPU ceiling.
func (p Phase) CPUIntensive() bool {
	return p == PhaseAIAnalysis || p == PhaseExploitGen
}

// NetworkIntensive marks phases that probe the target over the wire.
func (p Phase) NetworkIntensive() bool {
	switch p {
	case PhaseRecon, PhasePortScan, PhaseWebScan, PhaseVulnScan:
		return true
	default:
		return false
	}
}

// defaultTimeout is the fallback ceiling for a phase a profile enables
// without bounding.
func (p Phase) defaultTimeout() time.Duration {
	switch p {
	case PhaseRecon:
		return duration.PhaseRecon
	case PhasePortScan:
		return duration.PhasePortScan
	case PhaseWebScan:
		return duration.PhaseWebScan
	case PhaseVulnScan:
		return duration.PhaseVulnScan
	case PhaseAIAnalysis:
		return duration.PhaseAIAnalysis
	case PhaseExploitGen:
		return duration.PhaseExploitGen
	default:
		return duration.ContextMedium
	}
}
