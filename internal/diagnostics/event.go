// Package diagnostics turns telemetry options into durable events and
// ships them to a collector. The Logger half captures, the Uploader
// half delivers; the spool in between survives restarts.
package diagnostics

import (
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/beaconlabs/beacon/pkg/telemetry"
)

// sdkVersion is stamped into every event so collectors can segment by
// client version. Distinct from the binary's build version.
const sdkVersion = "0.4.0"

// Event is one diagnostics record as it travels through the spool and
// onto the wire. Config settings appear as key names only; values never
// leave the process.
type Event struct {
	ID          string    `json:"id"`
	Time        time.Time `json:"time"`
	AppID       string    `json:"app_id"`
	ProjectID   string    `json:"project_id,omitempty"`
	SenderID    string    `json:"sender_id,omitempty"`
	Environment string    `json:"environment,omitempty"`
	SDKVersion  string    `json:"sdk_version"`
	ConfigKeys  []string  `json:"config_keys,omitempty"`
	Platform    Platform  `json:"platform"`
}

// Platform describes where the event was produced.
type Platform struct {
	OS      string `json:"os"`
	Arch    string `json:"arch"`
	Runtime string `json:"runtime"`
}

// FromOptions derives an Event from telemetry options, stamping
// identity and capture time.
func FromOptions(opts *telemetry.Options) Event {
	keys := opts.ExtraKeys()
	sort.Strings(keys)
	return Event{
		ID:          uuid.NewString(),
		Time:        time.Now().UTC(),
		AppID:       opts.AppID,
		ProjectID:   opts.ProjectID,
		SenderID:    opts.SenderID,
		Environment: opts.Environment,
		SDKVersion:  sdkVersion,
		ConfigKeys:  keys,
		Platform: Platform{
			OS:      runtime.GOOS,
			Arch:    runtime.GOARCH,
			Runtime: runtime.Version(),
		},
	}
}
