package health

import (
	"regexp"

	"github.com/omnitak/takcore/component"
)

// scrubRules strip connection details from error text before it is
// exposed on /healthz. They run in order; URL rules go first so the
// path rule does not tear a URL apart.
var scrubRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`https?://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`nats://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`wss?://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`), "[PATH]"},
	{regexp.MustCompile(`[A-Z]:\\[^:\s]+`), "[PATH]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`:\d{2,5}\b`), "[PORT]"},
	{regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`), "[REDACTED]"},
}

// sanitizeErrorMessage replaces URLs, paths, addresses and credential
// values in msg with placeholders. Component errors routinely quote the
// endpoint they failed against, and /healthz is reachable without auth.
func sanitizeErrorMessage(msg string) string {
	for _, rule := range scrubRules {
		msg = rule.re.ReplaceAllString(msg, rule.repl)
	}
	return msg
}

// FromComponentHealth converts a component's self-reported health into a
// Status, scrubbing the last error before it goes on the wire.
func FromComponentHealth(name string, ch component.HealthStatus) Status {
	status := StatusUnhealthy
	if ch.Healthy {
		status = StatusHealthy
	}

	message := sanitizeErrorMessage(ch.LastError)
	if message == "" {
		if ch.Healthy {
			message = "component healthy"
		} else {
			message = "component reported unhealthy"
		}
	}

	s := newStatus(name, status, message)
	s.Metrics = &Metrics{
		Uptime:       ch.Uptime,
		ErrorCount:   ch.ErrorCount,
		LastActivity: ch.LastCheck,
	}
	return s
}
