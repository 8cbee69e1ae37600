package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wraithscan/wraithscan/pkg/scan"
)

// transientErrors are the failure modes the simulator injects. All of
// them classify as retryable so injected failures exercise the retry
// and backoff path instead of aborting the phase outright.
var transientErrors = []string{
	"connection reset by peer",
	"i/o timeout while reading response",
	"upstream scanner returned 502",
	"too many requests, retry after 1 seconds",
}

// resultKeys names the synthetic result counter per phase so simulated
// reports read like real ones.
var resultKeys = map[scan.Phase]string{
	scan.PhaseRecon:      "subdomains",
	scan.PhasePortScan:   "open_ports",
	scan.PhaseWebScan:    "endpoints",
	scan.PhaseVulnScan:   "findings",
	scan.PhaseAIAnalysis: "insights",
	scan.PhaseExploitGen: "validated",
}

// simRunner is a stand-in for real scanner integrations. It sleeps for
// a jittered interval, rolls the failure dice, and hands back synthetic
// counts. The orchestrator treats it like any other PhaseOp, so the
// limiter, breaker, retry and scheduling behavior is the real thing.
type simRunner struct {
	mu       sync.Mutex
	rng      *rand.Rand
	latency  time.Duration
	failRate float64
}

func newSimRunner(seed uint64, latency time.Duration, failRate float64) *simRunner {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if latency <= 0 {
		latency = 150 * time.Millisecond
	}
	if failRate < 0 {
		failRate = 0
	}
	if failRate > 1 {
		failRate = 1
	}
	return &simRunner{
		rng:      rand.New(rand.NewSource(int64(seed))),
		latency:  latency,
		failRate: failRate,
	}
}

func (s *simRunner) run(ctx context.Context, req scan.PhaseRequest) (any, error) {
	delay, failIdx, count := s.roll()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	if failIdx >= 0 {
		return nil, fmt.Errorf("%s %s: %s", req.Phase.Service(), req.Target, transientErrors[failIdx])
	}

	key := resultKeys[req.Phase]
	if key == "" {
		key = "results"
	}
	return map[string]any{key: count}, nil
}

// roll draws everything from the shared RNG under one lock so runs with
// the same seed and the same phase arrival order reproduce exactly.
func (s *simRunner) roll() (delay time.Duration, failIdx int, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Jitter between 50% and 150% of the configured mean.
	delay = s.latency/2 + time.Duration(s.rng.Int63n(int64(s.latency)))
	failIdx = -1
	if s.rng.Float64() < s.failRate {
		failIdx = s.rng.Intn(len(transientErrors))
	}
	count = 1 + s.rng.Intn(24)
	return delay, failIdx, count
}
