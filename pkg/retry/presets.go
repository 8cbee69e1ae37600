package retry

import (
	"time"

	"github.com/wraithscan/wraithscan/pkg/backoff"
	"github.com/wraithscan/wraithscan/pkg/defaults"
)

// Presets tuned per phase family. Port and network sweeps tolerate
// longer exponential waits; web probes fail fast; model-backed analysis
// gets short fixed pauses so a stuck provider cannot stall a run.

// NetworkScanConfig suits port scans and host discovery.
func NetworkScanConfig() Config {
	return Config{
		MaxAttempts: defaults.RetryMedium,
		Timeout:     5 * time.Minute,
		Backoff: backoff.Config{
			Strategy:   backoff.Exponential,
			Initial:    2 * time.Second,
			Max:        30 * time.Second,
			Multiplier: defaults.BackoffMultiplier,
		},
	}
}

// WebScanConfig suits HTTP application probing.
func WebScanConfig() Config {
	return Config{
		MaxAttempts: defaults.RetryLow,
		Timeout:     2 * time.Minute,
		Backoff: backoff.Config{
			Strategy: backoff.Fixed,
			Initial:  1 * time.Second,
			Max:      15 * time.Second,
		},
	}
}

// VulnScanConfig suits template-driven vulnerability scanning.
func VulnScanConfig() Config {
	return Config{
		MaxAttempts: defaults.RetryMedium,
		Timeout:     10 * time.Minute,
		Backoff: backoff.Config{
			Strategy:     backoff.ExponentialJitter,
			Initial:      5 * time.Second,
			Max:          60 * time.Second,
			Multiplier:   defaults.BackoffMultiplier,
			JitterFactor: defaults.JitterFactor,
		},
	}
}

// AIAnalysisConfig suits model-backed analysis calls.
func AIAnalysisConfig() Config {
	return Config{
		MaxAttempts: defaults.RetryLow,
		Timeout:     1 * time.Minute,
		Backoff: backoff.Config{
			Strategy: backoff.Fixed,
			Initial:  3 * time.Second,
			Max:      10 * time.Second,
		},
	}
}

// ReconConfig suits passive reconnaissance lookups.
func ReconConfig() Config {
	return Config{
		MaxAttempts: defaults.RetryLow,
		Timeout:     3 * time.Minute,
		Backoff: backoff.Config{
			Strategy: backoff.Linear,
			Initial:  1 * time.Second,
			Max:      10 * time.Second,
		},
	}
}
