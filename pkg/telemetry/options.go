package telemetry

// Options identifies the app a telemetry record belongs to. Values are
// copied into the outgoing record by the sink; the struct itself is not
// retained past the Report call.
type Options struct {
	// APIKey authenticates against the collector.
	APIKey string `json:"api_key,omitempty"`
	// AppID is the registered application identifier.
	AppID string `json:"app_id,omitempty"`
	// ProjectID scopes the app to a project.
	ProjectID string `json:"project_id,omitempty"`
	// SenderID is the messaging sender the app was provisioned with.
	SenderID string `json:"sender_id,omitempty"`
	// Environment distinguishes production from staging traffic.
	Environment string `json:"environment,omitempty"`
	// Extra carries free-form configuration settings. Only the keys are
	// ever reported; values stay on the client.
	Extra map[string]string `json:"extra,omitempty"`
}

// ExtraKeys returns the names of the configured extra settings, never
// their values.
func (o *Options) ExtraKeys() []string {
	if o == nil || len(o.Extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(o.Extra))
	for k := range o.Extra {
		keys = append(keys, k)
	}
	return keys
}
