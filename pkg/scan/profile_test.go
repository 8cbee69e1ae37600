package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

func TestPhaseWeightsSumToHundred(t *testing.T) {
	t.Parallel()
	sum := 0
	for _, phase := range Phases() {
		sum += phase.Weight()
	}
	if sum != 100 {
		t.Fatalf("phase weights sum to %d, want 100", sum)
	}
}

func TestParsePhase(t *testing.T) {
	t.Parallel()
	for _, phase := range Phases() {
		got, err := ParsePhase(string(phase))
		if err != nil {
			t.Fatalf("ParsePhase(%s): %v", phase, err)
		}
		if got != phase {
			t.Errorf("ParsePhase(%s) = %s", phase, got)
		}
	}
	if _, err := ParsePhase("dns_takeover"); err == nil {
		t.Error("ParsePhase should reject unknown names")
	}
}

func TestPhaseServiceAndClass(t *testing.T) {
	t.Parallel()
	cases := []struct {
		phase   Phase
		service string
		cpu     bool
		network bool
	}{
		{PhaseRecon, defaults.ServiceHTTP, false, true},
		{PhasePortScan, defaults.ServiceNmap, false, true},
		{PhaseWebScan, defaults.ServiceHTTP, false, true},
		{PhaseVulnScan, defaults.ServiceNuclei, false, true},
		{PhaseAIAnalysis, defaults.ServiceOpenAI, true, false},
		{PhaseExploitGen, defaults.ServiceOpenAI, true, false},
	}
	for _, tc := range cases {
		if got := tc.phase.Service(); got != tc.service {
			t.Errorf("%s service = %s, want %s", tc.phase, got, tc.service)
		}
		if got := tc.phase.CPUIntensive(); got != tc.cpu {
			t.Errorf("%s CPUIntensive = %v, want %v", tc.phase, got, tc.cpu)
		}
		if got := tc.phase.NetworkIntensive(); got != tc.network {
			t.Errorf("%s NetworkIntensive = %v, want %v", tc.phase, got, tc.network)
		}
	}
}

func TestBuiltInProfilesAreValid(t *testing.T) {
	t.Parallel()
	for _, typ := range BuiltInTypes() {
		p, err := BuiltIn(typ)
		if err != nil {
			t.Fatalf("BuiltIn(%s): %v", typ, err)
		}
		if p.Name == "" || p.Type != typ {
			t.Errorf("%s: name %q type %q", typ, p.Name, p.Type)
		}
		if issues := p.Validate(); len(issues) > 0 {
			t.Errorf("%s: validation issues: %v", typ, issues)
		}
	}
	if _, err := BuiltIn(ProfileTargeted); err == nil {
		t.Error("targeted has no built-in, BuiltIn should refuse")
	}
}

func TestBuiltIn_QuickShape(t *testing.T) {
	t.Parallel()
	p, err := BuiltIn(ProfileQuick)
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxConcurrentPhases != 2 || p.OverallTimeout != 10*time.Minute {
		t.Errorf("quick limits = %d concurrent / %s overall", p.MaxConcurrentPhases, p.OverallTimeout)
	}
	if p.Phases[PhaseAIAnalysis].Enabled || p.Phases[PhaseExploitGen].Enabled {
		t.Error("quick profile should skip analysis phases")
	}
	vuln := p.Phases[PhaseVulnScan]
	if len(vuln.Dependencies) != 2 {
		t.Fatalf("quick vuln deps = %v, want web+port", vuln.Dependencies)
	}
	if vuln.MaxRetries != 1 || vuln.Timeout != 180*time.Second {
		t.Errorf("quick vuln = %d retries / %s timeout", vuln.MaxRetries, vuln.Timeout)
	}
}

func TestBuiltIn_StealthShape(t *testing.T) {
	t.Parallel()
	p, err := BuiltIn(ProfileStealth)
	if err != nil {
		t.Fatal(err)
	}
	if p.MaxConcurrentPhases != 1 {
		t.Errorf("stealth runs phases sequentially, got concurrency %d", p.MaxConcurrentPhases)
	}
	if p.StealthDelay != 5*time.Second {
		t.Errorf("stealth delay = %s, want 5s", p.StealthDelay)
	}
	vuln := p.Phases[PhaseVulnScan]
	if len(vuln.Dependencies) != 1 || vuln.Dependencies[0] != PhaseWebScan {
		t.Errorf("stealth vuln deps = %v, want web_scan only", vuln.Dependencies)
	}
}

func TestCustomProfileLeavesBaseUntouched(t *testing.T) {
	t.Parallel()
	custom, err := Custom("Acme Quarterly", "widened quick scan", ProfileQuick, func(p *Profile) {
		ai := p.Phases[PhaseAIAnalysis]
		ai.Enabled = true
		p.Phases[PhaseAIAnalysis] = ai
		p.OverallTimeout = 20 * time.Minute
	})
	if err != nil {
		t.Fatal(err)
	}
	if custom.Type != ProfileTargeted || custom.Name != "Acme Quarterly" {
		t.Errorf("custom = %s/%s", custom.Type, custom.Name)
	}
	if !custom.Phases[PhaseAIAnalysis].Enabled {
		t.Error("mutation did not apply")
	}
	if issues := custom.Validate(); len(issues) > 0 {
		t.Errorf("custom profile invalid: %v", issues)
	}

	base, err := BuiltIn(ProfileQuick)
	if err != nil {
		t.Fatal(err)
	}
	if base.Phases[PhaseAIAnalysis].Enabled {
		t.Error("customizing leaked into the built-in base")
	}
	if base.OverallTimeout != 10*time.Minute {
		t.Errorf("base timeout changed to %s", base.OverallTimeout)
	}
}

func TestProfileLimits(t *testing.T) {
	t.Parallel()
	p, err := BuiltIn(ProfileComprehensive)
	if err != nil {
		t.Fatal(err)
	}
	limits := p.Limits()
	if limits.MaxConcurrent != 4 || limits.MaxCPU != 3 || limits.MemoryLimitMB != 1024 {
		t.Errorf("limits = %+v", limits)
	}
	if limits.MaxNetwork != 0 {
		t.Errorf("network ceiling should stay at the scheduler default, got %d", limits.MaxNetwork)
	}
}

func TestValidateFlagsBrokenProfiles(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*Profile)
		keyword string
	}{
		{
			name: "dependency on disabled phase",
			mutate: func(p *Profile) {
				web := p.Phases[PhaseWebScan]
				web.Enabled = false
				p.Phases[PhaseWebScan] = web
			},
			keyword: "disabled phase",
		},
		{
			name: "self dependency",
			mutate: func(p *Profile) {
				recon := p.Phases[PhaseRecon]
				recon.Dependencies = []Phase{PhaseRecon}
				p.Phases[PhaseRecon] = recon
			},
			keyword: "depends on itself",
		},
		{
			name: "nothing enabled",
			mutate: func(p *Profile) {
				for phase, cfg := range p.Phases {
					cfg.Enabled = false
					p.Phases[phase] = cfg
				}
			},
			keyword: "no phases are enabled",
		},
		{
			name: "timeouts exceed overall budget",
			mutate: func(p *Profile) {
				p.OverallTimeout = time.Minute
			},
			keyword: "exceeds the overall timeout",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, err := Custom("broken", "", ProfileQuick, tc.mutate)
			if err != nil {
				t.Fatal(err)
			}
			issues := p.Validate()
			if len(issues) == 0 {
				t.Fatal("expected validation issues")
			}
			found := false
			for _, issue := range issues {
				if strings.Contains(issue, tc.keyword) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("issues %v do not mention %q", issues, tc.keyword)
			}
		})
	}
}

func TestParseFillsDefaults(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`
name: Minimal
phases:
  reconnaissance: {}
`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != ProfileTargeted {
		t.Errorf("type = %s, want targeted", p.Type)
	}
	if p.MaxConcurrentPhases != defaults.ProfileConcurrent {
		t.Errorf("concurrency = %d, want %d", p.MaxConcurrentPhases, defaults.ProfileConcurrent)
	}
	if p.NetworkLimit != defaults.ProfileNetRequests || p.MemoryLimitMB != defaults.ProfileMemoryMB {
		t.Errorf("budgets = %d req / %d MB", p.NetworkLimit, p.MemoryLimitMB)
	}
	recon := p.Phases[PhaseRecon]
	if !recon.Enabled {
		t.Error("listed phase should default to enabled")
	}
	if recon.Timeout != duration.PhaseRecon {
		t.Errorf("timeout = %s, want %s", recon.Timeout, duration.PhaseRecon)
	}
	if recon.MaxRetries != defaults.PhaseRetries || recon.Priority != 1 {
		t.Errorf("recon = %d retries / priority %d", recon.MaxRetries, recon.Priority)
	}
}

func TestParseFullProfile(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`
name: Perimeter Sweep
description: nightly external surface check
type: standard
estimated-minutes: 20
overall-timeout-minutes: 45
max-concurrent-phases: 2
cpu-limit: 1
network-limit: 80
memory-limit-mb: 384
stealth-delay-seconds: 2
phases:
  reconnaissance:
    timeout-seconds: 90
    max-retries: 0
    priority: 1
    parameters:
      max_subdomains: 12
  port_scan:
    timeout-seconds: 240
    priority: 2
    dependencies: [reconnaissance]
  ai_analysis:
    enabled: false
`))
	if err != nil {
		t.Fatal(err)
	}
	if p.Type != ProfileStandard || p.OverallTimeout != 45*time.Minute {
		t.Errorf("parsed %s / %s", p.Type, p.OverallTimeout)
	}
	if p.StealthDelay != 2*time.Second || p.NetworkLimit != 80 {
		t.Errorf("pacing %s, budget %d", p.StealthDelay, p.NetworkLimit)
	}

	recon := p.Phases[PhaseRecon]
	if recon.Timeout != 90*time.Second || recon.MaxRetries != 0 {
		t.Errorf("recon = %s timeout / %d retries, explicit zero retries must stick", recon.Timeout, recon.MaxRetries)
	}
	if recon.Parameters["max_subdomains"] != 12 {
		t.Errorf("parameters lost: %v", recon.Parameters)
	}

	port := p.Phases[PhasePortScan]
	if len(port.Dependencies) != 1 || port.Dependencies[0] != PhaseRecon {
		t.Errorf("port deps = %v", port.Dependencies)
	}
	if p.Phases[PhaseAIAnalysis].Enabled {
		t.Error("enabled: false must parse as disabled")
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", "phases:\n  reconnaissance: {}\n"},
		{"unknown type", "name: x\ntype: blitz\nphases:\n  reconnaissance: {}\n"},
		{"unknown phase", "name: x\nphases:\n  crypto_mining: {}\n"},
		{"unknown dependency", "name: x\nphases:\n  port_scan:\n    dependencies: [warp_drive]\n"},
		{"not yaml", "{{{"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Errorf("Parse accepted %s", tc.name)
			}
		})
	}
}

func TestLoadProfileFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	body := "name: Sweep\nphases:\n  reconnaissance:\n    timeout-seconds: 30\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Sweep" || p.Phases[PhaseRecon].Timeout != 30*time.Second {
		t.Errorf("loaded %+v", p)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}
