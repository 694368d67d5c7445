// Package endpoints maps upload targets to collector URLs. Built-in
// defaults cover the standard collectors; configuration can point any
// target somewhere else, which is how staging and self-hosted setups
// work.
package endpoints

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/beaconlabs/beacon/internal/config"
)

// Target names a collector backend.
type Target string

const (
	TargetDiagnostics Target = "diagnostics"
	TargetEvents      Target = "events"
	TargetMetrics     Target = "metrics"
)

var defaults = map[Target]string{
	TargetDiagnostics: "https://diagnostics.beaconlabs.io/v1/batch",
	TargetEvents:      "https://events.beaconlabs.io/v1/batch",
	TargetMetrics:     "https://metrics.beaconlabs.io/v1/batch",
}

// ParseTarget maps a user-supplied name to a Target.
func ParseTarget(s string) (Target, bool) {
	t := Target(s)
	_, ok := defaults[t]
	return t, ok
}

// Registry resolves upload URLs per target.
type Registry struct {
	urls map[Target]*url.URL
}

// NewRegistry builds a registry from the defaults plus any configured
// overrides. Override URLs must be absolute.
func NewRegistry(overrides config.Endpoints) (*Registry, error) {
	merged := map[Target]string{}
	for t, raw := range defaults {
		merged[t] = raw
	}
	for t, raw := range map[Target]string{
		TargetDiagnostics: overrides.Diagnostics,
		TargetEvents:      overrides.Events,
		TargetMetrics:     overrides.Metrics,
	} {
		if raw != "" {
			merged[t] = raw
		}
	}

	urls := make(map[Target]*url.URL, len(merged))
	for t, raw := range merged {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", t, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("endpoint %s: %q is not an absolute URL", t, raw)
		}
		urls[t] = u
	}
	return &Registry{urls: urls}, nil
}

// UploadURL returns the collector URL for a target. Unknown targets
// report ok=false rather than an error; callers decide whether that is
// fatal. The returned URL is a copy the caller may modify.
func (r *Registry) UploadURL(t Target) (*url.URL, bool) {
	u, ok := r.urls[t]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

// Targets lists the known targets in stable order.
func (r *Registry) Targets() []Target {
	out := make([]Target, 0, len(r.urls))
	for t := range r.urls {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
