package scan

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/scheduler"
)

// ProfileType names the built-in assessment styles.
type ProfileType string

const (
	ProfileQuick         ProfileType = "quick"
	ProfileStandard      ProfileType = "standard"
	ProfileComprehensive ProfileType = "comprehensive"
	ProfileStealth       ProfileType = "stealth"
	ProfileCompliance    ProfileType = "compliance"
	ProfileTargeted      ProfileType = "targeted"
)

// Valid reports whether t is a known profile type.
func (t ProfileType) Valid() bool {
	switch t {
	case ProfileQuick, ProfileStandard, ProfileComprehensive, ProfileStealth, ProfileCompliance, ProfileTargeted:
		return true
	default:
		return false
	}
}

// BuiltInTypes lists the profile types with a built-in definition.
func BuiltInTypes() []ProfileType {
	return []ProfileType{ProfileQuick, ProfileStandard, ProfileComprehensive, ProfileStealth, ProfileCompliance}
}

// PhaseConfig configures one phase within a profile.
type PhaseConfig struct {
	Enabled bool

	// Timeout bounds a single attempt of the phase.
	Timeout time.Duration

	// MaxRetries is how many times the phase re-runs after a failure.
	MaxRetries int

	// Priority orders ready phases for admission: 1 is most urgent,
	// values of 4 and above share the lowest tier.
	Priority int

	// Dependencies are phases that must complete first.
	Dependencies []Phase

	// Parameters are passed through to the phase operation untouched.
	Parameters map[string]any
}

// Profile is a complete assessment definition: which phases run, how
// they depend on each other, and what resources the run may use.
type Profile struct {
	Name        string
	Description string
	Type        ProfileType

	// EstimatedDuration is advisory, for operators and planners.
	EstimatedDuration time.Duration

	// OverallTimeout bounds the whole assessment. Zero means unbounded.
	OverallTimeout time.Duration

	// MaxConcurrentPhases caps phases running at once.
	MaxConcurrentPhases int

	// CPULimit caps concurrently running CPU-intensive phases.
	CPULimit int

	// NetworkLimit is the per-window request budget granted to the
	// rate limiter guarding this assessment's service calls.
	NetworkLimit int

	// MemoryLimitMB is the advisory heap budget for the run.
	MemoryLimitMB int

	// StealthDelay spaces out phase launches. Zero disables pacing.
	StealthDelay time.Duration

	Phases map[Phase]PhaseConfig
}

// Limits maps the profile's concurrency settings onto scheduler
// ceilings. The network ceiling is left to the scheduler default; the
// profile's NetworkLimit budgets requests, not concurrent tasks, and
// feeds the rate limiter instead.
func (p Profile) Limits() scheduler.Limits {
	return scheduler.Limits{
		MaxConcurrent: p.MaxConcurrentPhases,
		MaxCPU:        p.CPULimit,
		MemoryLimitMB: p.MemoryLimitMB,
	}
}

// Validate returns every problem that would make the profile
// unrunnable. An empty slice means the profile is usable.
func (p Profile) Validate() []string {
	var issues []string

	enabled := 0
	for phase, cfg := range p.Phases {
		if _, err := ParsePhase(string(phase)); err != nil {
			issues = append(issues, fmt.Sprintf("unknown phase %q", phase))
			continue
		}
		if !cfg.Enabled {
			continue
		}
		enabled++
		for _, dep := range cfg.Dependencies {
			if dep == phase {
				issues = append(issues, fmt.Sprintf("phase %s depends on itself", phase))
				continue
			}
			depCfg, known := p.Phases[dep]
			if !known || !depCfg.Enabled {
				issues = append(issues, fmt.Sprintf("phase %s depends on disabled phase %s", phase, dep))
			}
		}
		if cfg.Timeout < 0 {
			issues = append(issues, fmt.Sprintf("phase %s has a negative timeout", phase))
		}
	}
	if enabled == 0 {
		issues = append(issues, "no phases are enabled")
	}

	if p.MaxConcurrentPhases < 0 {
		issues = append(issues, "max concurrent phases must not be negative")
	}
	if p.OverallTimeout < 0 {
		issues = append(issues, "overall timeout must not be negative")
	}
	if p.OverallTimeout > 0 {
		var total time.Duration
		for _, cfg := range p.Phases {
			if cfg.Enabled {
				total += cfg.Timeout
			}
		}
		if total > p.OverallTimeout {
			issues = append(issues, "sum of phase timeouts exceeds the overall timeout")
		}
	}
	return issues
}

// BuiltIn returns the built-in profile for t. Targeted profiles have no
// built-in; derive one with Custom.
func BuiltIn(t ProfileType) (Profile, error) {
	switch t {
	case ProfileQuick:
		return quickProfile(), nil
	case ProfileStandard:
		return standardProfile(), nil
	case ProfileComprehensive:
		return comprehensiveProfile(), nil
	case ProfileStealth:
		return stealthProfile(), nil
	case ProfileCompliance:
		return complianceProfile(), nil
	default:
		return Profile{}, fmt.Errorf("scan: no built-in profile for type %q", t)
	}
}

// Custom derives a targeted profile from a built-in base. The mutate
// callback edits the copy in place; the base is untouched.
func Custom(name, description string, base ProfileType, mutate func(*Profile)) (Profile, error) {
	p, err := BuiltIn(base)
	if err != nil {
		return Profile{}, err
	}
	p.Name = name
	p.Description = description
	p.Type = ProfileTargeted
	phases := make(map[Phase]PhaseConfig, len(p.Phases))
	for phase, cfg := range p.Phases {
		cfg.Dependencies = append([]Phase(nil), cfg.Dependencies...)
		phases[phase] = cfg
	}
	p.Phases = phases
	if mutate != nil {
		mutate(&p)
	}
	return p, nil
}

func phaseOn(timeout time.Duration, retries, priority int, params map[string]any, deps ...Phase) PhaseConfig {
	return PhaseConfig{
		Enabled:      true,
		Timeout:      timeout,
		MaxRetries:   retries,
		Priority:     priority,
		Dependencies: deps,
		Parameters:   params,
	}
}

// phaseOff keeps the canonical shape of a disabled phase so a Custom
// profile can enable it by flipping one field.
func phaseOff(p Phase, priority int, deps ...Phase) PhaseConfig {
	return PhaseConfig{
		Enabled:      false,
		Timeout:      p.defaultTimeout(),
		MaxRetries:   defaults.PhaseRetries,
		Priority:     priority,
		Dependencies: deps,
	}
}

func quickProfile() Profile {
	return Profile{
		Name:                "Quick Scan",
		Description:         "Fast reconnaissance and basic vulnerability checks",
		Type:                ProfileQuick,
		EstimatedDuration:   5 * time.Minute,
		OverallTimeout:      10 * time.Minute,
		MaxConcurrentPhases: 2,
		CPULimit:            1,
		NetworkLimit:        50,
		MemoryLimitMB:       256,
		Phases: map[Phase]PhaseConfig{
			PhaseRecon: phaseOn(60*time.Second, 1, 1, map[string]any{
				"dns_enumeration": true,
				"max_subdomains":  5,
			}),
			PhasePortScan: phaseOn(120*time.Second, 1, 2, map[string]any{
				"port_range": "1-1000",
				"timing":     "aggressive",
			}, PhaseRecon),
			PhaseWebScan: phaseOn(90*time.Second, 1, 3, map[string]any{
				"check_ssl": true,
				"max_paths": 10,
			}, PhasePortScan),
			PhaseVulnScan: phaseOn(180*time.Second, 1, 4, map[string]any{
				"templates": []string{"cves/critical", "exposures/configs"},
			}, PhaseWebScan, PhasePortScan),
			PhaseAIAnalysis: phaseOff(PhaseAIAnalysis, 5, PhaseVulnScan),
			PhaseExploitGen: phaseOff(PhaseExploitGen, 6, PhaseAIAnalysis),
		},
	}
}

func standardProfile() Profile {
	return Profile{
		Name:                "Standard Scan",
		Description:         "Balanced security assessment with good coverage",
		Type:                ProfileStandard,
		EstimatedDuration:   15 * time.Minute,
		OverallTimeout:      30 * time.Minute,
		MaxConcurrentPhases: 3,
		CPULimit:            2,
		NetworkLimit:        200,
		MemoryLimitMB:       512,
		Phases: map[Phase]PhaseConfig{
			PhaseRecon: phaseOn(180*time.Second, 2, 1, map[string]any{
				"dns_enumeration":     true,
				"subdomain_discovery": true,
				"max_subdomains":      20,
			}),
			PhasePortScan: phaseOn(300*time.Second, 2, 2, map[string]any{
				"port_range":        "1-10000",
				"timing":            "normal",
				"service_detection": true,
			}, PhaseRecon),
			PhaseWebScan: phaseOn(240*time.Second, 2, 3, map[string]any{
				"check_ssl":            true,
				"directory_bruteforce": true,
				"technology_detection": true,
				"max_paths":            50,
			}, PhasePortScan),
			PhaseVulnScan: phaseOn(450*time.Second, 2, 4, map[string]any{
				"templates":       []string{"cves/", "vulnerabilities/", "misconfiguration/"},
				"severity_filter": []string{"critical", "high", "medium"},
			}, PhaseWebScan, PhasePortScan),
			PhaseAIAnalysis: phaseOn(120*time.Second, 1, 5, map[string]any{
				"model":          "gpt-4-turbo",
				"analysis_depth": "standard",
			}, PhaseVulnScan),
			PhaseExploitGen: phaseOff(PhaseExploitGen, 6, PhaseAIAnalysis),
		},
	}
}

func comprehensiveProfile() Profile {
	return Profile{
		Name:                "Comprehensive Scan",
		Description:         "Thorough security assessment with deep analysis",
		Type:                ProfileComprehensive,
		EstimatedDuration:   45 * time.Minute,
		OverallTimeout:      90 * time.Minute,
		MaxConcurrentPhases: 4,
		CPULimit:            3,
		NetworkLimit:        500,
		MemoryLimitMB:       1024,
		Phases: map[Phase]PhaseConfig{
			PhaseRecon: phaseOn(360*time.Second, 3, 1, map[string]any{
				"dns_enumeration":     true,
				"subdomain_discovery": true,
				"max_subdomains":      100,
				"shodan_lookup":       true,
			}),
			PhasePortScan: phaseOn(600*time.Second, 3, 2, map[string]any{
				"port_range":        "1-65535",
				"timing":            "normal",
				"service_detection": true,
				"os_detection":      true,
			}, PhaseRecon),
			PhaseWebScan: phaseOn(480*time.Second, 3, 3, map[string]any{
				"directory_bruteforce": true,
				"max_paths":            200,
				"parameter_discovery":  true,
			}, PhasePortScan),
			PhaseVulnScan: phaseOn(900*time.Second, 3, 4, map[string]any{
				"templates": []string{"cves/", "vulnerabilities/", "misconfiguration/", "exposures/"},
				"deep_scan": true,
			}, PhaseWebScan, PhasePortScan),
			PhaseAIAnalysis: phaseOn(180*time.Second, 2, 5, map[string]any{
				"model":           "gpt-4-turbo",
				"analysis_depth":  "comprehensive",
				"threat_modeling": true,
			}, PhaseVulnScan),
			PhaseExploitGen: phaseOn(240*time.Second, 2, 6, map[string]any{
				"generate_poc":       true,
				"severity_threshold": "medium",
			}, PhaseAIAnalysis),
		},
	}
}

func stealthProfile() Profile {
	return Profile{
		Name:                "Stealth Scan",
		Description:         "Low-profile scanning to evade detection",
		Type:                ProfileStealth,
		EstimatedDuration:   60 * time.Minute,
		OverallTimeout:      120 * time.Minute,
		MaxConcurrentPhases: 1,
		CPULimit:            1,
		NetworkLimit:        50,
		MemoryLimitMB:       256,
		StealthDelay:        5 * time.Second,
		Phases: map[Phase]PhaseConfig{
			PhaseRecon: phaseOn(600*time.Second, 1, 1, map[string]any{
				"passive_recon":         true,
				"randomize_user_agents": true,
			}),
			PhasePortScan: phaseOn(1200*time.Second, 1, 2, map[string]any{
				"port_range":      "22,80,443,8080,8443",
				"timing":          "paranoid",
				"randomize_order": true,
			}, PhaseRecon),
			PhaseWebScan: phaseOn(480*time.Second, 1, 3, map[string]any{
				"max_paths":          5,
				"respect_robots_txt": true,
			}, PhasePortScan),
			PhaseVulnScan: phaseOn(600*time.Second, 1, 4, map[string]any{
				"templates":  []string{"cves/critical"},
				"rate_limit": "1req/5s",
			}, PhaseWebScan),
			PhaseAIAnalysis: phaseOn(120*time.Second, defaults.PhaseRetries, 5, map[string]any{
				"model":          "gpt-3.5-turbo",
				"analysis_depth": "basic",
			}, PhaseVulnScan),
			PhaseExploitGen: phaseOff(PhaseExploitGen, 6, PhaseAIAnalysis),
		},
	}
}

func complianceProfile() Profile {
	return Profile{
		Name:                "Compliance Scan",
		Description:         "Security assessment focused on compliance requirements",
		Type:                ProfileCompliance,
		EstimatedDuration:   30 * time.Minute,
		OverallTimeout:      60 * time.Minute,
		MaxConcurrentPhases: 3,
		CPULimit:            defaults.SchedulerCPUBound,
		NetworkLimit:        defaults.ProfileNetRequests,
		MemoryLimitMB:       defaults.ProfileMemoryMB,
		Phases: map[Phase]PhaseConfig{
			PhaseRecon: phaseOn(240*time.Second, defaults.PhaseRetries, 1, map[string]any{
				"certificate_analysis": true,
			}),
			PhasePortScan: phaseOn(360*time.Second, defaults.PhaseRetries, 2, map[string]any{
				"port_range":      "1-10000",
				"banner_grabbing": true,
			}, PhaseRecon),
			PhaseWebScan: phaseOn(300*time.Second, defaults.PhaseRetries, 3, map[string]any{
				"ssl_compliance_check":        true,
				"security_headers_compliance": true,
			}, PhasePortScan),
			PhaseVulnScan: phaseOn(540*time.Second, defaults.PhaseRetries, 4, map[string]any{
				"compliance_templates": []string{"pci-dss", "gdpr", "hipaa", "sox"},
				"encryption_checks":    true,
			}, PhaseWebScan),
			PhaseAIAnalysis: phaseOn(150*time.Second, defaults.PhaseRetries, 5, map[string]any{
				"compliance_focus": true,
				"risk_assessment":  true,
			}, PhaseVulnScan),
			PhaseExploitGen: phaseOff(PhaseExploitGen, 6, PhaseAIAnalysis),
		},
	}
}

// profileFile is the YAML schema for profiles on disk. Durations are
// unit-suffixed integers so files stay readable.
type profileFile struct {
	Name                  string               `yaml:"name"`
	Description           string               `yaml:"description,omitempty"`
	Type                  string               `yaml:"type,omitempty"`
	EstimatedMinutes      int                  `yaml:"estimated-minutes,omitempty"`
	OverallTimeoutMinutes int                  `yaml:"overall-timeout-minutes,omitempty"`
	MaxConcurrentPhases   int                  `yaml:"max-concurrent-phases,omitempty"`
	CPULimit              int                  `yaml:"cpu-limit,omitempty"`
	NetworkLimit          int                  `yaml:"network-limit,omitempty"`
	MemoryLimitMB         int                  `yaml:"memory-limit-mb,omitempty"`
	StealthDelaySeconds   int                  `yaml:"stealth-delay-seconds,omitempty"`
	Phases                map[string]phaseFile `yaml:"phases"`
}

type phaseFile struct {
	Enabled        *bool          `yaml:"enabled,omitempty"`
	TimeoutSeconds int            `yaml:"timeout-seconds,omitempty"`
	MaxRetries     *int           `yaml:"max-retries,omitempty"`
	Priority       int            `yaml:"priority,omitempty"`
	Dependencies   []string       `yaml:"dependencies,omitempty"`
	Parameters     map[string]any `yaml:"parameters,omitempty"`
}

// Load reads a profile from a YAML file.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("scan: read profile: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile and fills omitted settings with
// defaults. Semantic validation is left to Validate, which New runs.
func Parse(data []byte) (Profile, error) {
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return Profile{}, fmt.Errorf("scan: parse profile: %w", err)
	}
	if pf.Name == "" {
		return Profile{}, fmt.Errorf("scan: profile missing required field: name")
	}

	p := Profile{
		Name:                pf.Name,
		Description:         pf.Description,
		Type:                ProfileType(pf.Type),
		EstimatedDuration:   time.Duration(pf.EstimatedMinutes) * time.Minute,
		OverallTimeout:      time.Duration(pf.OverallTimeoutMinutes) * time.Minute,
		MaxConcurrentPhases: pf.MaxConcurrentPhases,
		CPULimit:            pf.CPULimit,
		NetworkLimit:        pf.NetworkLimit,
		MemoryLimitMB:       pf.MemoryLimitMB,
		StealthDelay:        time.Duration(pf.StealthDelaySeconds) * time.Second,
		Phases:              make(map[Phase]PhaseConfig, len(pf.Phases)),
	}
	if p.Type == "" {
		p.Type = ProfileTargeted
	}
	if !p.Type.Valid() {
		return Profile{}, fmt.Errorf("scan: unknown profile type %q", pf.Type)
	}
	if p.MaxConcurrentPhases <= 0 {
		p.MaxConcurrentPhases = defaults.ProfileConcurrent
	}
	if p.CPULimit <= 0 {
		p.CPULimit = defaults.SchedulerCPUBound
	}
	if p.NetworkLimit <= 0 {
		p.NetworkLimit = defaults.ProfileNetRequests
	}
	if p.MemoryLimitMB <= 0 {
		p.MemoryLimitMB = defaults.ProfileMemoryMB
	}

	for name, pc := range pf.Phases {
		phase, err := ParsePhase(name)
		if err != nil {
			return Profile{}, err
		}
		cfg := PhaseConfig{
			Enabled:    true,
			Timeout:    time.Duration(pc.TimeoutSeconds) * time.Second,
			MaxRetries: defaults.PhaseRetries,
			Priority:   pc.Priority,
			Parameters: pc.Parameters,
		}
		if pc.Enabled != nil {
			cfg.Enabled = *pc.Enabled
		}
		if pc.MaxRetries != nil {
			cfg.MaxRetries = *pc.MaxRetries
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = phase.defaultTimeout()
		}
		if cfg.Priority <= 0 {
			cfg.Priority = 1
		}
		for _, dep := range pc.Dependencies {
			dp, err := ParsePhase(dep)
			if err != nil {
				return Profile{}, fmt.Errorf("scan: phase %s: %w", phase, err)
			}
			cfg.Dependencies = append(cfg.Dependencies, dp)
		}
		p.Phases[phase] = cfg
	}
	return p, nil
}
