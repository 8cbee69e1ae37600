package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wraithscan/wraithscan/pkg/defaults"
	"github.com/wraithscan/wraithscan/pkg/duration"
)

// Classify normalizes err into a Fault for the named operation.
//
// Typed *Fault values pass through with the operation filled in.
// Everything else is matched against ordered rules, most specific
// first: typed stdlib errors, then keyword checks on the error text.
// Returns nil for a nil error.
func Classify(err error, op string) *Fault {
	if err == nil {
		return nil
	}

	var f *Fault
	if errors.As(err, &f) {
		if f.Op == "" {
			f.Op = op
		}
		return f
	}

	// Caller cancellation is not a service failure and must never be
	// retried against the service.
	if errors.Is(err, context.Canceled) {
		return Wrap(System, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutFault(op, err)
	}

	// Typed network errors before text matching.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutFault(op, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return networkFault(op, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return networkFault(op, err)
	}
	if os.IsPermission(err) {
		return fsFault(op, "permission denied", err)
	}
	if os.IsNotExist(err) {
		return fsFault(op, "not found", err)
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return timeoutFault(op, err)

	case containsAny(msg, "connection", "network", "unreachable", "refused"):
		return networkFault(op, err)

	case containsAny(msg, "auth", "unauthorized", "forbidden", "credentials"):
		if containsAny(msg, "forbidden", "authorization") {
			f := New(Authorization, op, fmt.Sprintf("authorization failed in %s", op))
			f.Err = err
			return f
		}
		f := New(Authentication, op, fmt.Sprintf("authentication failed in %s", op))
		f.Err = err
		return f

	case containsAny(msg, "rate limit", "too many requests", "quota exceeded"):
		f := New(RateLimiting, op, fmt.Sprintf("rate limit exceeded in %s", op))
		f.Err = err
		f.RetryAfter = ExtractRetryAfter(msg)
		return f

	case strings.Contains(msg, "permission"):
		return fsFault(op, "permission denied", err)

	case strings.Contains(msg, "not found"):
		return fsFault(op, "not found", err)
	}

	// Anything left came from some upstream service.
	f = New(ExternalService, op, fmt.Sprintf("error in %s: %v", op, err))
	f.Err = err
	f.Service = GuessService(op, msg)
	return f
}

func timeoutFault(op string, err error) *Fault {
	f := New(Timeout, op, fmt.Sprintf("operation %s timed out", op))
	f.Err = err
	return f
}

func networkFault(op string, err error) *Fault {
	f := New(Network, op, fmt.Sprintf("network error in %s: %v", op, err))
	f.Err = err
	return f
}

func fsFault(op, what string, err error) *Fault {
	f := New(FileSystem, op, fmt.Sprintf("%s in %s: %v", what, op, err))
	f.Err = err
	return f
}

// retryAfterPatterns recognize the wait hints providers put in error
// text, e.g. "retry after 30" or "rate limit resets in 120 seconds".
var retryAfterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`retry after (\d+)`),
	regexp.MustCompile(`wait (\d+) seconds`),
	regexp.MustCompile(`try again in (\d+)`),
	regexp.MustCompile(`rate limit.*?(\d+).*?seconds`),
}

// ExtractRetryAfter pulls a wait hint in seconds out of provider error
// text. Falls back to duration.RetryAfterFallback when the message
// names no number.
func ExtractRetryAfter(message string) time.Duration {
	lower := strings.ToLower(message)
	for _, re := range retryAfterPatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if secs, err := strconv.Atoi(m[1]); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return duration.RetryAfterFallback
}

// serviceRules map keywords to canonical service names. Order matters:
// the first rule with a hit wins.
var serviceRules = []struct {
	name     string
	keywords []string
}{
	{defaults.ServiceOpenAI, []string{"openai", "gpt", "ai", "chat"}},
	{defaults.ServiceNmap, []string{"nmap", "port", "scan"}},
	{defaults.ServiceNuclei, []string{"nuclei", "vulnerability"}},
	{defaults.ServiceDatabase, []string{"database", "db", "sql", "postgres"}},
	{defaults.ServiceRedis, []string{"redis", "cache"}},
	{defaults.ServiceHTTP, []string{"http", "api", "request"}},
}

// GuessService names the upstream service an error most likely came
// from, looking at the operation name first and the error text second.
func GuessService(op, message string) string {
	opLower := strings.ToLower(op)
	msgLower := strings.ToLower(message)
	for _, rule := range serviceRules {
		for _, kw := range rule.keywords {
			if strings.Contains(opLower, kw) || strings.Contains(msgLower, kw) {
				return rule.name
			}
		}
	}
	return defaults.ServiceUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
